package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

// ScheduleService renders a student's weekly timetable for a term.
type ScheduleService struct {
	held   heldSectionReader
	slots  timeSlotReader
	cache  *CacheService
	logger *zap.Logger
}

// NewScheduleService constructs the timetable reader. cache may be nil.
func NewScheduleService(held heldSectionReader, slots timeSlotReader, cache *CacheService, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{held: held, slots: slots, cache: cache, logger: logger}
}

// GetStudentWeeklySchedule lists every meeting of the sections the student is
// enrolled in for the term, ordered monday first and then by start time.
func (s *ScheduleService) GetStudentWeeklySchedule(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.WeeklyScheduleEntry, error) {
	if semester.Order() == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be spring, summer or fall")
	}

	key := ScheduleCacheKey(studentID, semester, year)
	var cached []models.WeeklyScheduleEntry
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	held, err := s.held.ListHeldSections(ctx, studentID, semester, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled sections")
	}
	entries := make([]models.WeeklyScheduleEntry, 0)
	if len(held) == 0 {
		_ = s.cache.Set(ctx, key, entries, 0)
		return entries, nil
	}

	ids := make([]string, 0, len(held))
	for _, h := range held {
		ids = append(ids, h.SectionID)
	}
	slots, err := s.slots.ListSlots(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}

	for _, h := range held {
		for _, slot := range slots[h.SectionID] {
			entries = append(entries, models.WeeklyScheduleEntry{
				Day:         slot.DayOfWeek.Normalize(),
				Start:       slot.StartTime,
				End:         slot.EndTime,
				CourseID:    h.CourseID,
				CourseCode:  h.CourseCode,
				CourseName:  h.CourseName,
				SectionID:   h.SectionID,
				SectionCode: h.SectionCode,
				Room:        slot.Room,
			})
		}
	}
	sortWeeklySchedule(entries)

	if err := s.cache.Set(ctx, key, entries, 0); err != nil {
		s.logger.Debug("schedule not cached", zap.String("student_id", studentID), zap.Error(err))
	}
	return entries, nil
}

func sortWeeklySchedule(entries []models.WeeklyScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Day.Index() != b.Day.Index() {
			return a.Day.Index() < b.Day.Index()
		}
		as, aerr := models.ParseClock(a.Start)
		bs, berr := models.ParseClock(b.Start)
		if aerr == nil && berr == nil && as != bs {
			return as < bs
		}
		return a.CourseCode < b.CourseCode
	})
}
