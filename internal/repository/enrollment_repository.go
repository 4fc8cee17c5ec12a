package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-core/internal/models"
)

// EnrollmentRepository serves read paths and grade writes for enrollments.
// Status transitions and seat accounting go through EnrollmentStore.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

const enrollmentDetailQuery = `SELECT e.id, e.student_id, e.section_id, e.status, e.enrollment_date, e.drop_date, e.is_repeat, e.midterm, e.final, e.homework,
        e.average, e.letter_grade, e.grade_point, e.approved_at, e.rejection_reason, e.updated_at,
        cs.course_id, c.code AS course_code, c.credits, cs.semester, cs.year
        FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        JOIN courses c ON c.id = cs.course_id
        WHERE e.id = $1`

// UpdateGradesLocked loads the enrollment with FOR UPDATE, lets apply merge
// the new components into it and writes the result before the lock is
// released. An error from apply rolls back without writing.
func (r *EnrollmentRepository) UpdateGradesLocked(ctx context.Context, id string, apply func(*models.EnrollmentDetail) error) (_ *models.EnrollmentDetail, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grade transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var detail models.EnrollmentDetail
	if err = tx.GetContext(ctx, &detail, enrollmentDetailQuery+` FOR UPDATE OF e`, id); err != nil {
		return nil, err
	}
	if err = apply(&detail); err != nil {
		return nil, err
	}
	if err = updateGrades(ctx, tx, &detail.Enrollment); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grade transaction: %w", err)
	}
	return &detail, nil
}

// ListCompletedCourses returns every completed attempt with a letter grade.
func (r *EnrollmentRepository) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT cs.course_id, e.letter_grade
        FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        WHERE e.student_id = $1 AND e.status = $2 AND e.letter_grade IS NOT NULL`
	var completed []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &completed, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return completed, nil
}

// ListHeldSections returns sections the student is enrolled in for a term.
func (r *EnrollmentRepository) ListHeldSections(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.StudentSection, error) {
	const query = `SELECT e.id AS enrollment_id, cs.id AS section_id, cs.section_code, cs.course_id,
        c.code AS course_code, c.name AS course_name, cs.semester, cs.year
        FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        JOIN courses c ON c.id = cs.course_id
        WHERE e.student_id = $1 AND cs.semester = $2 AND cs.year = $3 AND e.status = $4
        ORDER BY c.code`
	var sections []models.StudentSection
	if err := r.db.SelectContext(ctx, &sections, query, studentID, semester, year, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list held sections: %w", err)
	}
	return sections, nil
}

// ListGradedAttempts returns completed and failed attempts carrying a grade point.
func (r *EnrollmentRepository) ListGradedAttempts(ctx context.Context, studentID string) ([]models.GradedAttempt, error) {
	const query = `SELECT e.id AS enrollment_id, cs.course_id, c.code AS course_code, c.credits, cs.semester, cs.year,
        e.status, e.letter_grade, e.grade_point, e.is_repeat
        FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        JOIN courses c ON c.id = cs.course_id
        WHERE e.student_id = $1 AND e.status IN ($2, $3) AND e.grade_point IS NOT NULL
        ORDER BY cs.year, cs.semester, c.code`
	var attempts []models.GradedAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, studentID, models.EnrollmentStatusCompleted, models.EnrollmentStatusFailed); err != nil {
		return nil, fmt.Errorf("list graded attempts: %w", err)
	}
	return attempts, nil
}

// updateGrades persists raw components, derived grade fields and the resulting status.
func updateGrades(ctx context.Context, q sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET midterm = :midterm, final = :final, homework = :homework,
        average = :average, letter_grade = :letter_grade, grade_point = :grade_point,
        status = :status, updated_at = :updated_at
        WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, q, query, enrollment)
	if err != nil {
		return fmt.Errorf("update grades: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grades rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
