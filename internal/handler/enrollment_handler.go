package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
	"github.com/noah-isme/academic-core/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error)
	RequestEnrollment(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error)
	Drop(ctx context.Context, enrollmentID, studentID string) (*models.Enrollment, error)
	Withdraw(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	Approve(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	Reject(ctx context.Context, enrollmentID, reason string) (*models.Enrollment, error)
	CheckEligibility(ctx context.Context, studentID, sectionID string) (*models.EligibilityReport, error)
}

// EnrollRequest is the payload for creating an enrollment.
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	SectionID string `json:"section_id" binding:"required"`
}

// RejectRequest carries the reason shown to the student.
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments     enrollmentService
	requireApproval bool
}

// NewEnrollmentHandler constructs EnrollmentHandler. With requireApproval set,
// Create records pending requests instead of enrolling directly.
func NewEnrollmentHandler(enrollments enrollmentService, requireApproval bool) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, requireApproval: requireApproval}
}

// Create enrolls a student, or files a request when approval is required.
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	create := h.enrollments.Enroll
	if h.requireApproval {
		create = h.enrollments.RequestEnrollment
	}
	enrollment, err := create(c.Request.Context(), req.StudentID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop releases the student's seat within the drop window.
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	enrollment, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Withdraw administratively ends an enrollment.
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	enrollment, err := h.enrollments.Withdraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Approve turns a pending request into an enrollment.
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	enrollment, err := h.enrollments.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Reject closes a pending request.
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
	}
	enrollment, err := h.enrollments.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Eligibility reports every enroll check for a student and section without enrolling.
func (h *EnrollmentHandler) Eligibility(c *gin.Context) {
	studentID, sectionID := c.Query("student_id"), c.Query("section_id")
	if studentID == "" || sectionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id and section_id are required"))
		return
	}
	report, err := h.enrollments.CheckEligibility(c.Request.Context(), studentID, sectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
