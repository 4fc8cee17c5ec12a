package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-core/internal/models"
)

// CourseRepository reads the course catalogue and prerequisite graph.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credits, ects, department_id, is_active FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListPrerequisites returns the direct prerequisite edges of a course.
// An unknown course simply has no edges.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.CoursePrerequisite, error) {
	const query = `SELECT cp.course_id, cp.prerequisite_id, p.code AS prerequisite_code, p.name AS prerequisite_name,
        COALESCE(cp.min_grade, 'DD') AS min_grade
        FROM course_prerequisites cp
        JOIN courses p ON p.id = cp.prerequisite_id
        WHERE cp.course_id = $1
        ORDER BY p.code`
	var edges []models.CoursePrerequisite
	if err := r.db.SelectContext(ctx, &edges, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return edges, nil
}
