package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseSection, error)
}

type heldSectionReader interface {
	ListHeldSections(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.StudentSection, error)
}

type timeSlotReader interface {
	ListSlots(ctx context.Context, sectionIDs []string) (map[string][]models.TimeSlot, error)
}

// ScheduleConflictService detects weekly time overlaps between a candidate
// section and the sections a student already holds in the same term.
type ScheduleConflictService struct {
	sections sectionReader
	held     heldSectionReader
	slots    timeSlotReader
	logger   *zap.Logger
}

// NewScheduleConflictService constructs the detector.
func NewScheduleConflictService(sections sectionReader, held heldSectionReader, slots timeSlotReader, logger *zap.Logger) *ScheduleConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleConflictService{sections: sections, held: held, slots: slots, logger: logger}
}

// HasConflict reports every overlapping pair between the candidate section and
// the student's enrolled sections of the candidate's term.
func (s *ScheduleConflictService) HasConflict(ctx context.Context, studentID, candidateSectionID string) (*models.ConflictReport, error) {
	section, err := s.sections.FindByID(ctx, candidateSectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	held, err := s.held.ListHeldSections(ctx, studentID, section.Semester, section.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held sections")
	}

	ids := []string{candidateSectionID}
	codes := make(map[string]string, len(held))
	for _, h := range held {
		if h.SectionID == candidateSectionID {
			continue
		}
		ids = append(ids, h.SectionID)
		codes[h.SectionID] = h.CourseCode
	}
	if len(ids) == 1 {
		return &models.ConflictReport{}, nil
	}

	bySection, err := s.slots.ListSlots(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}

	var existing []models.TimeSlot
	for _, id := range ids[1:] {
		existing = append(existing, bySection[id]...)
	}

	conflicts, err := FindConflicts(bySection[candidateSectionID], existing, codes)
	if err != nil {
		s.logger.Error("malformed time slot", zap.String("section_id", candidateSectionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid time slot data")
	}
	return &models.ConflictReport{Conflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}

// SlotsOverlap reports whether two weekly slots share at least one minute.
// Slots that only touch at an endpoint do not overlap.
func SlotsOverlap(a, b models.TimeSlot) (bool, error) {
	if a.DayOfWeek.Normalize() != b.DayOfWeek.Normalize() {
		return false, nil
	}
	aStart, aEnd, err := a.Minutes()
	if err != nil {
		return false, err
	}
	bStart, bEnd, err := b.Minutes()
	if err != nil {
		return false, err
	}
	return aStart < bEnd && aEnd > bStart, nil
}

// FindConflicts pairs every candidate slot with every existing slot and returns
// all overlaps. courseCodes maps existing section IDs to course codes for the report.
func FindConflicts(candidate, existing []models.TimeSlot, courseCodes map[string]string) ([]models.ScheduleConflict, error) {
	var conflicts []models.ScheduleConflict
	for _, c := range candidate {
		for _, e := range existing {
			overlap, err := SlotsOverlap(c, e)
			if err != nil {
				return nil, fmt.Errorf("compare slots %s and %s: %w", c.ID, e.ID, err)
			}
			if !overlap {
				continue
			}
			conflicts = append(conflicts, models.ScheduleConflict{
				Day:                c.DayOfWeek.Normalize(),
				CandidateSectionID: c.SectionID,
				CandidateStart:     c.StartTime,
				CandidateEnd:       c.EndTime,
				ExistingSectionID:  e.SectionID,
				ExistingCourseCode: courseCodes[e.SectionID],
				ExistingStart:      e.StartTime,
				ExistingEnd:        e.EndTime,
			})
		}
	}
	return conflicts, nil
}
