package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-core/internal/models"
)

// SectionRepository reads course sections and their weekly time slots.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID returns a section with its course.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	return (&enrollmentQueries{q: r.db}).FindSection(ctx, id)
}

// ListSlots returns the time slots of the given sections, keyed by section ID.
func (r *SectionRepository) ListSlots(ctx context.Context, sectionIDs []string) (map[string][]models.TimeSlot, error) {
	if len(sectionIDs) == 0 {
		return map[string][]models.TimeSlot{}, nil
	}
	const query = `SELECT id, section_id, day_of_week, to_char(start_time, 'HH24:MI') AS start_time,
        to_char(end_time, 'HH24:MI') AS end_time, room
        FROM section_time_slots WHERE section_id = ANY($1)
        ORDER BY section_id, start_time`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(sectionIDs))
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.TimeSlot, len(sectionIDs))
	for rows.Next() {
		var slot models.TimeSlot
		if err := rows.StructScan(&slot); err != nil {
			return nil, fmt.Errorf("scan time slot: %w", err)
		}
		slot.DayOfWeek = slot.DayOfWeek.Normalize()
		result[slot.SectionID] = append(result[slot.SectionID], slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time slots: %w", err)
	}
	return result, nil
}
