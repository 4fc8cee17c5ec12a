package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-core/internal/models"
)

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, student_number, full_name, is_active, gpa, cgpa, total_credits, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// SaveAcademicSummary overwrites the cached aggregates with a freshly recomputed summary.
func (r *StudentRepository) SaveAcademicSummary(ctx context.Context, summary models.AcademicSummary) error {
	const query = `UPDATE students SET gpa = $2, cgpa = $3, total_credits = $4, updated_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, summary.StudentID, summary.GPA, summary.CGPA, summary.TotalCredits, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save academic summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save academic summary rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
