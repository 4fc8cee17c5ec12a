package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/internal/service"
	"github.com/noah-isme/academic-core/pkg/response"
)

type gradeService interface {
	UpdateGrades(ctx context.Context, enrollmentID string, req service.UpdateGradesRequest) (*models.Enrollment, error)
	GetCGPA(ctx context.Context, studentID string) (*models.AcademicSummary, error)
	Recompute(ctx context.Context, studentID string) (*models.AcademicSummary, error)
}

// GradeHandler exposes grade entry and academic summary endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Update stores grade components for an enrollment.
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := h.grades.UpdateGrades(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// CGPA returns the student's academic summary.
func (h *GradeHandler) CGPA(c *gin.Context) {
	summary, err := h.grades.GetCGPA(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Recompute rebuilds and stores the student's academic summary.
func (h *GradeHandler) Recompute(c *gin.Context) {
	summary, err := h.grades.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}
