package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-core/internal/models"
)

// EnrollmentReader holds the lookups the enroll pipeline runs. Outside a
// transaction they read committed state without locks.
type EnrollmentReader interface {
	FindSection(ctx context.Context, sectionID string) (*models.CourseSection, error)
	FindStudentSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error)
	FindEnrolledInCourseTerm(ctx context.Context, studentID, courseID string, semester models.Semester, year int, excludeSectionID string) (*models.Enrollment, error)
	HasPriorAttempt(ctx context.Context, studentID, courseID string) (bool, error)
}

// EnrollmentTx is the transactional surface that owns enrollment state and seat counts.
//
// ConditionalIncrement is the only way enrolled_count changes. It applies delta
// only when the result stays within [0, capacity] and returns the number of rows
// affected; zero means the predicate failed and nothing was written.
//
// LockStudent serialises the same student's concurrent enrollments so the
// same-course and timetable checks see each other's committed rows. It is
// taken before LockSection.
type EnrollmentTx interface {
	EnrollmentReader
	LockStudent(ctx context.Context, studentID string) error
	LockSection(ctx context.Context, sectionID string) (*models.CourseSection, error)
	LockEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	ConditionalIncrement(ctx context.Context, sectionID string, delta int) (int64, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEnrollmentState(ctx context.Context, enrollment *models.Enrollment) error
}

// EnrollmentStore runs enrollment workflows against PostgreSQL.
type EnrollmentStore struct {
	db *sqlx.DB
}

// NewEnrollmentStore constructs the store.
func NewEnrollmentStore(db *sqlx.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

// Reader returns lock-free lookups bound to the pool.
func (s *EnrollmentStore) Reader() EnrollmentReader {
	return &enrollmentQueries{q: s.db}
}

// WithinTx runs fn in a transaction. Any error from fn, a cancelled context or a
// failed commit rolls everything back, seat count included.
func (s *EnrollmentStore) WithinTx(ctx context.Context, fn func(EnrollmentTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&enrollmentQueries{q: tx}); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("enrollment transaction aborted: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

type enrollmentQueries struct {
	q sqlx.ExtContext
}

const sectionColumns = `cs.id, cs.course_id, cs.section_code, cs.semester, cs.year, cs.capacity, cs.enrolled_count, cs.is_active,
        c.code AS course_code, c.name AS course_name, c.is_active AS course_active`

const enrollmentColumns = `id, student_id, section_id, status, enrollment_date, drop_date, is_repeat, midterm, final, homework,
        average, letter_grade, grade_point, approved_at, rejection_reason, updated_at`

func (r *enrollmentQueries) FindSection(ctx context.Context, sectionID string) (*models.CourseSection, error) {
	query := `SELECT ` + sectionColumns + `
        FROM course_sections cs
        JOIN courses c ON c.id = cs.course_id
        WHERE cs.id = $1`
	var section models.CourseSection
	if err := sqlx.GetContext(ctx, r.q, &section, query, sectionID); err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *enrollmentQueries) LockStudent(ctx context.Context, studentID string) error {
	var id string
	return sqlx.GetContext(ctx, r.q, &id, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, studentID)
}

// LockSection takes the row lock that serialises seat accounting for the section.
func (r *enrollmentQueries) LockSection(ctx context.Context, sectionID string) (*models.CourseSection, error) {
	query := `SELECT ` + sectionColumns + `
        FROM course_sections cs
        JOIN courses c ON c.id = cs.course_id
        WHERE cs.id = $1
        FOR UPDATE OF cs`
	var section models.CourseSection
	if err := sqlx.GetContext(ctx, r.q, &section, query, sectionID); err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *enrollmentQueries) LockEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.q, &enrollment, query, enrollmentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentQueries) FindStudentSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND section_id = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.q, &enrollment, query, studentID, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student section enrollment: %w", err)
	}
	return &enrollment, nil
}

func (r *enrollmentQueries) FindEnrolledInCourseTerm(ctx context.Context, studentID, courseID string, semester models.Semester, year int, excludeSectionID string) (*models.Enrollment, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.status, e.enrollment_date, e.drop_date, e.is_repeat, e.midterm, e.final, e.homework,
        e.average, e.letter_grade, e.grade_point, e.approved_at, e.rejection_reason, e.updated_at
        FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        WHERE e.student_id = $1 AND cs.course_id = $2 AND cs.semester = $3 AND cs.year = $4
          AND e.status = $5 AND e.section_id <> $6
        LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.q, &enrollment, query, studentID, courseID, semester, year, models.EnrollmentStatusEnrolled, excludeSectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find course term enrollment: %w", err)
	}
	return &enrollment, nil
}

func (r *enrollmentQueries) HasPriorAttempt(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e
        JOIN course_sections cs ON cs.id = e.section_id
        WHERE e.student_id = $1 AND cs.course_id = $2 AND e.status IN ($3, $4)
        LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.q, &exists, query, studentID, courseID, models.EnrollmentStatusCompleted, models.EnrollmentStatusFailed); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check prior attempt: %w", err)
	}
	return true, nil
}

func (r *enrollmentQueries) ConditionalIncrement(ctx context.Context, sectionID string, delta int) (int64, error) {
	const query = `UPDATE course_sections SET enrolled_count = enrolled_count + $2
        WHERE id = $1 AND enrolled_count + $2 >= 0 AND enrolled_count + $2 <= capacity`
	result, err := r.q.ExecContext(ctx, query, sectionID, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust enrolled count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adjust enrolled count rows: %w", err)
	}
	return affected, nil
}

func (r *enrollmentQueries) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, section_id, status, enrollment_date, drop_date, is_repeat, approved_at, updated_at)
        VALUES (:id, :student_id, :section_id, :status, :enrollment_date, :drop_date, :is_repeat, :approved_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (r *enrollmentQueries) UpdateEnrollmentState(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, enrollment_date = :enrollment_date, drop_date = :drop_date,
        approved_at = :approved_at, rejection_reason = :rejection_reason, updated_at = :updated_at
        WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.q, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment state rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
