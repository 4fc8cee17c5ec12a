package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
	"github.com/noah-isme/academic-core/pkg/response"
)

type scheduleService interface {
	GetStudentWeeklySchedule(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.WeeklyScheduleEntry, error)
}

// ScheduleHandler serves weekly timetables.
type ScheduleHandler struct {
	schedules scheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules scheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Weekly returns the student's timetable for ?semester=&year=.
func (h *ScheduleHandler) Weekly(c *gin.Context) {
	semester, ok := models.ParseSemester(c.Query("semester"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be spring, summer or fall"))
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a positive integer"))
		return
	}
	entries, err := h.schedules.GetStudentWeeklySchedule(c.Request.Context(), c.Param("id"), semester, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"semester": semester, "year": year})
}
