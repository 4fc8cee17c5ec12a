package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/internal/repository"
	"github.com/noah-isme/academic-core/pkg/database"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

// Operation names used for metrics and logs.
const (
	opEnroll   = "enroll"
	opRequest  = "request"
	opApprove  = "approve"
	opReject   = "reject"
	opDrop     = "drop"
	opWithdraw = "withdraw"
)

// Fallbacks when EnrollmentConfig leaves values unset.
const (
	defaultDropWindow = 28 * 24 * time.Hour
	defaultTxTimeout  = 5 * time.Second
)

type enrollmentStore interface {
	Reader() repository.EnrollmentReader
	WithinTx(ctx context.Context, fn func(repository.EnrollmentTx) error) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type prerequisiteChecker interface {
	CheckSatisfied(ctx context.Context, studentID, courseID string) (*models.PrerequisiteCheck, error)
}

type conflictChecker interface {
	HasConflict(ctx context.Context, studentID, candidateSectionID string) (*models.ConflictReport, error)
}

// EnrollmentConfig carries the policy knobs of the orchestrator.
type EnrollmentConfig struct {
	DropWindow time.Duration
	TxTimeout  time.Duration
}

// EnrollmentService is the only writer of enrollment rows and section seat
// counts. Every state transition runs inside one transaction bounded by
// TxTimeout; seat counts only move through the conditional increment. Placing
// a student locks the student row and then the section row.
type EnrollmentService struct {
	store     enrollmentStore
	students  studentReader
	prereqs   prerequisiteChecker
	conflicts conflictChecker
	cache     *CacheService
	metrics   *MetricsService
	notifier  eventNotifier
	logger    *zap.Logger
	cfg       EnrollmentConfig
	now       func() time.Time
}

// NewEnrollmentService constructs the orchestrator. cache, metrics and notifier may be nil.
func NewEnrollmentService(store enrollmentStore, students studentReader, prereqs prerequisiteChecker, conflicts conflictChecker, cache *CacheService, metrics *MetricsService, notifier eventNotifier, cfg EnrollmentConfig, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DropWindow <= 0 {
		cfg.DropWindow = defaultDropWindow
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	return &EnrollmentService{
		store:     store,
		students:  students,
		prereqs:   prereqs,
		conflicts: conflicts,
		cache:     cache,
		metrics:   metrics,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Enroll places the student in the section directly, consuming a seat.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	created, err := s.create(ctx, opEnroll, studentID, sectionID, models.EnrollmentStatusEnrolled)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, opEnroll, models.EventEnrollmentCreated, *created, nil)
	return created, nil
}

// RequestEnrollment runs the enroll checks and records a pending request
// without consuming a seat.
func (s *EnrollmentService) RequestEnrollment(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	created, err := s.create(ctx, opRequest, studentID, sectionID, models.EnrollmentStatusPending)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, opRequest, models.EventEnrollmentRequested, *created, nil)
	return created, nil
}

func (s *EnrollmentService) create(ctx context.Context, op, studentID, sectionID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if err := s.requireActiveStudent(ctx, studentID); err != nil {
		return nil, s.fail(op, studentID, sectionID, err)
	}

	var created *models.Enrollment
	err := s.runTx(ctx, op, func(ctx context.Context, tx repository.EnrollmentTx) error {
		if err := lockStudent(ctx, tx, studentID); err != nil {
			return err
		}
		section, err := lockSection(ctx, tx, sectionID)
		if err != nil {
			return err
		}
		if err := activeSection(section); err != nil {
			return err
		}
		if err := seatAvailable(section); err != nil {
			return err
		}
		reason, err := duplicateReason(ctx, tx, studentID, section)
		if err != nil {
			return err
		}
		if reason != "" {
			return appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, reason, map[string]interface{}{"section_id": section.ID})
		}
		if err := s.requirePrerequisites(ctx, studentID, section.CourseID); err != nil {
			return err
		}
		if err := s.requireNoConflict(ctx, studentID, section.ID); err != nil {
			return err
		}
		repeat, err := tx.HasPriorAttempt(ctx, studentID, section.CourseID)
		if err != nil {
			return storageError(err, "failed to check prior attempts")
		}
		if status == models.EnrollmentStatusEnrolled {
			if err := s.takeSeat(ctx, tx, section); err != nil {
				return err
			}
		}

		enrollment := &models.Enrollment{
			StudentID:      studentID,
			SectionID:      section.ID,
			Status:         status,
			EnrollmentDate: s.now().UTC(),
			IsRepeat:       repeat,
		}
		if err := tx.CreateEnrollment(ctx, enrollment); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "student already has an enrollment for this section",
					map[string]interface{}{"section_id": section.ID})
			}
			return storageError(err, "failed to create enrollment")
		}
		created = enrollment
		return nil
	})
	if err != nil {
		return nil, s.fail(op, studentID, sectionID, err)
	}
	return created, nil
}

// Drop releases an enrolled seat within the drop window.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID, studentID string) (*models.Enrollment, error) {
	var dropped models.Enrollment
	err := s.runTx(ctx, opDrop, func(ctx context.Context, tx repository.EnrollmentTx) error {
		enrollment, err := lockEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.StudentID != studentID || enrollment.Status != models.EnrollmentStatusEnrolled {
			return appErrors.Clone(appErrors.ErrNotFound, "no active enrollment found for student")
		}

		now := s.now().UTC()
		deadline := enrollment.EnrollmentDate.Add(s.cfg.DropWindow)
		if now.After(deadline) {
			return appErrors.WithDetails(appErrors.ErrDropWindowExpired, "", map[string]interface{}{
				"enrolled_at": enrollment.EnrollmentDate.UTC(),
				"deadline":    deadline.UTC(),
			})
		}

		enrollment.Status = models.EnrollmentStatusDropped
		enrollment.DropDate = &now
		if err := s.leave(ctx, tx, enrollment); err != nil {
			return err
		}
		dropped = *enrollment
		return nil
	})
	if err != nil {
		return nil, s.fail(opDrop, studentID, enrollmentID, err)
	}
	s.afterCommit(ctx, opDrop, models.EventEnrollmentDropped, dropped, nil)
	return &dropped, nil
}

// Withdraw ends an enrolled seat regardless of the drop window.
func (s *EnrollmentService) Withdraw(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	var withdrawn models.Enrollment
	err := s.runTx(ctx, opWithdraw, func(ctx context.Context, tx repository.EnrollmentTx) error {
		enrollment, err := lockEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.Status != models.EnrollmentStatusEnrolled {
			return invalidTransition(enrollment.Status, models.EnrollmentStatusWithdrawn)
		}
		now := s.now().UTC()
		enrollment.Status = models.EnrollmentStatusWithdrawn
		enrollment.DropDate = &now
		if err := s.leave(ctx, tx, enrollment); err != nil {
			return err
		}
		withdrawn = *enrollment
		return nil
	})
	if err != nil {
		return nil, s.fail(opWithdraw, "", enrollmentID, err)
	}
	s.afterCommit(ctx, opWithdraw, models.EventEnrollmentWithdrawn, withdrawn, nil)
	return &withdrawn, nil
}

// Approve turns a pending request into an enrollment, rechecking seat,
// same-course and timetable constraints under the student and section locks.
func (s *EnrollmentService) Approve(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	var approved models.Enrollment
	err := s.runTx(ctx, opApprove, func(ctx context.Context, tx repository.EnrollmentTx) error {
		enrollment, err := lockEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.Status != models.EnrollmentStatusPending {
			return invalidTransition(enrollment.Status, models.EnrollmentStatusEnrolled)
		}
		if err := lockStudent(ctx, tx, enrollment.StudentID); err != nil {
			return err
		}
		section, err := lockSection(ctx, tx, enrollment.SectionID)
		if err != nil {
			return err
		}
		if err := activeSection(section); err != nil {
			return err
		}
		if err := seatAvailable(section); err != nil {
			return err
		}
		other, err := tx.FindEnrolledInCourseTerm(ctx, enrollment.StudentID, section.CourseID, section.Semester, section.Year, section.ID)
		if err != nil {
			return storageError(err, "failed to check course enrollments")
		}
		if other != nil {
			return appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "student is enrolled in another section of this course",
				map[string]interface{}{"section_id": other.SectionID})
		}
		if err := s.requireNoConflict(ctx, enrollment.StudentID, section.ID); err != nil {
			return err
		}
		if err := s.takeSeat(ctx, tx, section); err != nil {
			return err
		}

		now := s.now().UTC()
		enrollment.Status = models.EnrollmentStatusEnrolled
		enrollment.ApprovedAt = &now
		enrollment.EnrollmentDate = now
		if err := tx.UpdateEnrollmentState(ctx, enrollment); err != nil {
			return storageError(err, "failed to approve enrollment")
		}
		approved = *enrollment
		return nil
	})
	if err != nil {
		return nil, s.fail(opApprove, "", enrollmentID, err)
	}
	s.afterCommit(ctx, opApprove, models.EventEnrollmentApproved, approved, nil)
	return &approved, nil
}

// Reject closes a pending request. No seat was held, so none is released.
func (s *EnrollmentService) Reject(ctx context.Context, enrollmentID, reason string) (*models.Enrollment, error) {
	var rejected models.Enrollment
	err := s.runTx(ctx, opReject, func(ctx context.Context, tx repository.EnrollmentTx) error {
		enrollment, err := lockEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.Status != models.EnrollmentStatusPending {
			return invalidTransition(enrollment.Status, models.EnrollmentStatusRejected)
		}
		enrollment.Status = models.EnrollmentStatusRejected
		if reason != "" {
			enrollment.RejectionReason = &reason
		}
		if err := tx.UpdateEnrollmentState(ctx, enrollment); err != nil {
			return storageError(err, "failed to reject enrollment")
		}
		rejected = *enrollment
		return nil
	})
	if err != nil {
		return nil, s.fail(opReject, "", enrollmentID, err)
	}
	s.afterCommit(ctx, opReject, models.EventEnrollmentRejected, rejected, map[string]interface{}{"reason": reason})
	return &rejected, nil
}

// CheckEligibility runs every enroll check without locking or writing and
// reports all outcomes instead of stopping at the first failure.
func (s *EnrollmentService) CheckEligibility(ctx context.Context, studentID, sectionID string) (*models.EligibilityReport, error) {
	if err := s.requireActiveStudent(ctx, studentID); err != nil {
		return nil, err
	}
	reader := s.store.Reader()
	section, err := reader.FindSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, storageError(err, "failed to load section")
	}

	report := &models.EligibilityReport{
		StudentID:     studentID,
		SectionID:     sectionID,
		SectionActive: section.Active && section.CourseActive,
		Capacity: models.CapacityStatus{
			Capacity:  section.Capacity,
			Enrolled:  section.EnrolledCount,
			Available: section.Capacity - section.EnrolledCount,
			Full:      section.Full(),
		},
	}
	if report.Capacity.Available < 0 {
		report.Capacity.Available = 0
	}

	reason, err := duplicateReason(ctx, reader, studentID, section)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		report.Duplicate = &reason
	}

	prereqs, err := s.prereqs.CheckSatisfied(ctx, studentID, section.CourseID)
	if err != nil {
		return nil, storageError(err, "failed to check prerequisites")
	}
	report.Prerequisites = *prereqs

	conflicts, err := s.conflicts.HasConflict(ctx, studentID, section.ID)
	if err != nil {
		return nil, storageError(err, "failed to check schedule conflicts")
	}
	report.Conflicts = *conflicts

	if report.IsRepeat, err = reader.HasPriorAttempt(ctx, studentID, section.CourseID); err != nil {
		return nil, storageError(err, "failed to check prior attempts")
	}

	report.Eligible = report.SectionActive && !report.Capacity.Full && report.Duplicate == nil &&
		report.Prerequisites.Satisfied && !report.Conflicts.Conflict
	return report, nil
}

// runTx bounds fn by the transaction timeout and records its duration.
func (s *EnrollmentService) runTx(ctx context.Context, op string, fn func(context.Context, repository.EnrollmentTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.WithinTx(ctx, func(tx repository.EnrollmentTx) error {
		return fn(ctx, tx)
	})
	s.metrics.ObserveTx(op, time.Since(start))
	if err != nil && ctx.Err() != nil && appErrors.Code(err) == "" {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment transaction timed out")
	}
	return err
}

func (s *EnrollmentService) requireActiveStudent(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return storageError(err, "failed to load student")
	}
	if !student.Active {
		return appErrors.Clone(appErrors.ErrInactiveResource, "student is not active")
	}
	return nil
}

func (s *EnrollmentService) requirePrerequisites(ctx context.Context, studentID, courseID string) error {
	check, err := s.prereqs.CheckSatisfied(ctx, studentID, courseID)
	if err != nil {
		return storageError(err, "failed to check prerequisites")
	}
	if !check.Satisfied {
		return appErrors.WithDetails(appErrors.ErrPrerequisiteUnmet, "", check.Missing)
	}
	return nil
}

func (s *EnrollmentService) requireNoConflict(ctx context.Context, studentID, sectionID string) error {
	report, err := s.conflicts.HasConflict(ctx, studentID, sectionID)
	if err != nil {
		return storageError(err, "failed to check schedule conflicts")
	}
	if report.Conflict {
		return appErrors.WithDetails(appErrors.ErrScheduleConflict, "", report.Conflicts)
	}
	return nil
}

// takeSeat claims one seat. Zero affected rows means the guard refused the
// write: the section filled between the capacity check and the update.
func (s *EnrollmentService) takeSeat(ctx context.Context, tx repository.EnrollmentTx, section *models.CourseSection) error {
	affected, err := tx.ConditionalIncrement(ctx, section.ID, 1)
	if err != nil {
		return storageError(err, "failed to reserve seat")
	}
	if affected == 0 {
		s.metrics.RecordSeatRace()
		full := appErrors.WithDetails(appErrors.ErrCapacityExceeded, "", map[string]interface{}{"capacity": section.Capacity})
		race := appErrors.Wrap(full, appErrors.ErrConcurrencyConflict.Code, appErrors.ErrConcurrencyConflict.Status, "section filled while enrolling")
		race.Details = full.Details
		return race
	}
	return nil
}

// leave persists an exit transition and gives the seat back.
func (s *EnrollmentService) leave(ctx context.Context, tx repository.EnrollmentTx, enrollment *models.Enrollment) error {
	if err := tx.UpdateEnrollmentState(ctx, enrollment); err != nil {
		return storageError(err, "failed to update enrollment")
	}
	affected, err := tx.ConditionalIncrement(ctx, enrollment.SectionID, -1)
	if err != nil {
		return storageError(err, "failed to release seat")
	}
	if affected == 0 {
		s.logger.Error("seat count already zero on release",
			zap.String("section_id", enrollment.SectionID),
			zap.String("enrollment_id", enrollment.ID))
		return appErrors.Clone(appErrors.ErrInternal, "seat count out of sync")
	}
	return nil
}

func (s *EnrollmentService) afterCommit(ctx context.Context, op string, eventType models.EventType, enrollment models.Enrollment, payload map[string]interface{}) {
	s.metrics.RecordEnrollmentAttempt(op, OutcomeSuccess)
	s.logger.Info("enrollment transition",
		zap.String("operation", op),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("section_id", enrollment.SectionID),
		zap.String("status", string(enrollment.Status)))
	s.cache.InvalidateStudent(ctx, enrollment.StudentID)
	if s.notifier != nil {
		s.notifier.Notify(ctx, newDomainEvent(ctx, eventType, enrollment, payload))
	}
}

// fail classifies err for metrics and logs. Domain refusals pass through
// untouched; anything else becomes an internal error.
func (s *EnrollmentService) fail(op, studentID, target string, err error) error {
	appErr := appErrors.FromError(err)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("student_id", studentID),
		zap.String("target_id", target),
		zap.String("code", appErr.Code),
	}
	if appErr.Code == appErrors.ErrInternal.Code {
		s.metrics.RecordEnrollmentAttempt(op, OutcomeError)
		s.logger.Error("enrollment operation failed", append(fields, zap.Error(err))...)
		return appErr
	}
	s.metrics.RecordEnrollmentAttempt(op, OutcomeRejected)
	s.logger.Info("enrollment operation rejected", fields...)
	return appErr
}

func lockStudent(ctx context.Context, tx repository.EnrollmentTx, studentID string) error {
	if err := tx.LockStudent(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return storageError(err, "failed to lock student")
	}
	return nil
}

func lockSection(ctx context.Context, tx repository.EnrollmentTx, sectionID string) (*models.CourseSection, error) {
	section, err := tx.LockSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, storageError(err, "failed to lock section")
	}
	return section, nil
}

func lockEnrollment(ctx context.Context, tx repository.EnrollmentTx, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := tx.LockEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, storageError(err, "failed to lock enrollment")
	}
	return enrollment, nil
}

func activeSection(section *models.CourseSection) error {
	if !section.Active {
		return appErrors.WithDetails(appErrors.ErrInactiveResource, "section is not active", map[string]interface{}{"section_id": section.ID})
	}
	if !section.CourseActive {
		return appErrors.WithDetails(appErrors.ErrInactiveResource, "course is not active", map[string]interface{}{"course_id": section.CourseID})
	}
	return nil
}

func seatAvailable(section *models.CourseSection) error {
	if section.Full() {
		return appErrors.WithDetails(appErrors.ErrCapacityExceeded, "", map[string]interface{}{
			"capacity": section.Capacity,
			"enrolled": section.EnrolledCount,
		})
	}
	return nil
}

// duplicateReason explains why the student may not take the section again, or
// returns "" when nothing blocks it. Any earlier row for the same section
// blocks, dropped ones included.
func duplicateReason(ctx context.Context, q repository.EnrollmentReader, studentID string, section *models.CourseSection) (string, error) {
	existing, err := q.FindStudentSection(ctx, studentID, section.ID)
	if err != nil {
		return "", storageError(err, "failed to check existing enrollment")
	}
	if existing != nil {
		if existing.Status == models.EnrollmentStatusDropped {
			return "student dropped this section and cannot re-enroll", nil
		}
		return "student already has a " + string(existing.Status) + " enrollment for this section", nil
	}
	other, err := q.FindEnrolledInCourseTerm(ctx, studentID, section.CourseID, section.Semester, section.Year, section.ID)
	if err != nil {
		return "", storageError(err, "failed to check course enrollments")
	}
	if other != nil {
		return "student is enrolled in another section of this course", nil
	}
	return "", nil
}

func invalidTransition(from, to models.EnrollmentStatus) error {
	return appErrors.WithDetails(appErrors.ErrInvalidState, "", map[string]interface{}{"from": from, "to": to})
}

func storageError(err error, message string) error {
	if appErrors.Code(err) != "" {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
