package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/academic-core/internal/models"
)

func TestWeeklyScheduleValidatesTerm(t *testing.T) {
	schedules := &fakeScheduleSrv{}
	r := newTestRouter(&fakeEnrollmentSrv{}, &fakeGradeSrv{}, schedules, false)

	rec, _ := serve(r, http.MethodGet, "/api/v1/students/stu-1/schedule?semester=winter&year=2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(r, http.MethodGet, "/api/v1/students/stu-1/schedule?semester=fall&year=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeeklySchedule(t *testing.T) {
	schedules := &fakeScheduleSrv{entries: []models.WeeklyScheduleEntry{{Day: models.Monday, Start: "09:00", End: "10:30", CourseCode: "CS101"}}}
	r := newTestRouter(&fakeEnrollmentSrv{}, &fakeGradeSrv{}, schedules, false)

	rec, env := serve(r, http.MethodGet, "/api/v1/students/stu-1/schedule?semester=Fall&year=2024", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SemesterFall, schedules.semester)
	assert.Equal(t, 2024, schedules.year)
	assert.Equal(t, "fall", env.Meta["semester"])
}
