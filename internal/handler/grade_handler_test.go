package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

func TestUpdateGradesPassesComponentsAndWeights(t *testing.T) {
	grades := &fakeGradeSrv{}
	r := newTestRouter(&fakeEnrollmentSrv{}, grades, &fakeScheduleSrv{}, false)

	rec, _ := serve(r, http.MethodPut, "/api/v1/enrollments/enr-1/grades",
		`{"midterm":70,"final":80,"weights":{"midterm":0.5,"final":0.5}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enr-1", grades.lastID)
	require.NotNil(t, grades.lastReq.Midterm)
	assert.Equal(t, 70.0, *grades.lastReq.Midterm)
	assert.Nil(t, grades.lastReq.Homework)
	require.NotNil(t, grades.lastReq.Weights)
	assert.Equal(t, 0.5, grades.lastReq.Weights.Final)
}

func TestUpdateGradesRangeError(t *testing.T) {
	grades := &fakeGradeSrv{err: appErrors.WithDetails(appErrors.ErrInvalidGradeRange, "", map[string]interface{}{"fields": []string{"final"}})}
	r := newTestRouter(&fakeEnrollmentSrv{}, grades, &fakeScheduleSrv{}, false)

	rec, env := serve(r, http.MethodPut, "/api/v1/enrollments/enr-1/grades", `{"final":120}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_GRADE_RANGE", env.Error.Code)
}

func TestUpdateGradesMalformedBody(t *testing.T) {
	r := newTestRouter(&fakeEnrollmentSrv{}, &fakeGradeSrv{}, &fakeScheduleSrv{}, false)
	rec, _ := serve(r, http.MethodPut, "/api/v1/enrollments/enr-1/grades", `{"final":"high"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCGPAAndRecompute(t *testing.T) {
	grades := &fakeGradeSrv{summary: &models.AcademicSummary{StudentID: "stu-1", CGPA: 3.12}}
	r := newTestRouter(&fakeEnrollmentSrv{}, grades, &fakeScheduleSrv{}, false)

	rec, env := serve(r, http.MethodGet, "/api/v1/students/stu-1/cgpa", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var summary models.AcademicSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 3.12, summary.CGPA)

	rec, _ = serve(r, http.MethodPost, "/api/v1/students/stu-1/cgpa/recompute", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
