package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

type fakeCatalog struct {
	sections map[string]*models.CourseSection
	slots    map[string][]models.TimeSlot
	held     map[string][]models.StudentSection
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		sections: map[string]*models.CourseSection{},
		slots:    map[string][]models.TimeSlot{},
		held:     map[string][]models.StudentSection{},
	}
}

func (f *fakeCatalog) addSection(section models.CourseSection, slots ...models.TimeSlot) {
	s := section
	f.sections[section.ID] = &s
	for i := range slots {
		slots[i].SectionID = section.ID
		if slots[i].ID == "" {
			slots[i].ID = section.ID + "-slot"
		}
	}
	f.slots[section.ID] = slots
}

func (f *fakeCatalog) hold(studentID, sectionID string) {
	section := f.sections[sectionID]
	f.held[studentID] = append(f.held[studentID], models.StudentSection{
		SectionID:  sectionID,
		CourseID:   section.CourseID,
		CourseCode: section.CourseCode,
		Semester:   section.Semester,
		Year:       section.Year,
	})
}

func (f *fakeCatalog) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	if s, ok := f.sections[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalog) ListHeldSections(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.StudentSection, error) {
	var out []models.StudentSection
	for _, h := range f.held[studentID] {
		if h.Semester == semester && h.Year == year {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListSlots(ctx context.Context, sectionIDs []string) (map[string][]models.TimeSlot, error) {
	out := map[string][]models.TimeSlot{}
	for _, id := range sectionIDs {
		out[id] = append([]models.TimeSlot(nil), f.slots[id]...)
	}
	return out, nil
}

func slot(day models.Weekday, start, end string) models.TimeSlot {
	return models.TimeSlot{DayOfWeek: day, StartTime: start, EndTime: end}
}

func TestHasConflictMondayOverlap(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addSection(models.CourseSection{ID: "sec-a", CourseID: "cs101", CourseCode: "CS101", Semester: models.SemesterFall, Year: 2024},
		slot(models.Monday, "09:00", "10:30"))
	catalog.addSection(models.CourseSection{ID: "sec-b", CourseID: "ma101", CourseCode: "MA101", Semester: models.SemesterFall, Year: 2024},
		slot(models.Monday, "10:00", "11:30"))
	catalog.hold("stu-1", "sec-a")

	svc := NewScheduleConflictService(catalog, catalog, catalog, nil)
	report, err := svc.HasConflict(context.Background(), "stu-1", "sec-b")
	require.NoError(t, err)
	require.True(t, report.Conflict)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, models.Monday, report.Conflicts[0].Day)
	assert.Equal(t, "sec-a", report.Conflicts[0].ExistingSectionID)
	assert.Equal(t, "CS101", report.Conflicts[0].ExistingCourseCode)
}

func TestHasConflictIgnoresOtherTerms(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addSection(models.CourseSection{ID: "sec-a", Semester: models.SemesterSpring, Year: 2024}, slot(models.Monday, "09:00", "10:30"))
	catalog.addSection(models.CourseSection{ID: "sec-b", Semester: models.SemesterFall, Year: 2024}, slot(models.Monday, "09:00", "10:30"))
	catalog.hold("stu-1", "sec-a")

	svc := NewScheduleConflictService(catalog, catalog, catalog, nil)
	report, err := svc.HasConflict(context.Background(), "stu-1", "sec-b")
	require.NoError(t, err)
	assert.False(t, report.Conflict)
}

func TestHasConflictReportsEveryPair(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addSection(models.CourseSection{ID: "sec-a", CourseCode: "CS101", Semester: models.SemesterFall, Year: 2024},
		models.TimeSlot{ID: "a1", DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00"},
		models.TimeSlot{ID: "a2", DayOfWeek: models.Wednesday, StartTime: "09:00", EndTime: "10:00"})
	catalog.addSection(models.CourseSection{ID: "sec-b", CourseCode: "PH101", Semester: models.SemesterFall, Year: 2024},
		models.TimeSlot{ID: "b1", DayOfWeek: models.Wednesday, StartTime: "09:30", EndTime: "11:00"})
	catalog.addSection(models.CourseSection{ID: "sec-c", Semester: models.SemesterFall, Year: 2024},
		models.TimeSlot{ID: "c1", DayOfWeek: models.Monday, StartTime: "09:30", EndTime: "10:30"},
		models.TimeSlot{ID: "c2", DayOfWeek: models.Wednesday, StartTime: "10:00", EndTime: "10:45"})
	catalog.hold("stu-1", "sec-a")
	catalog.hold("stu-1", "sec-b")

	svc := NewScheduleConflictService(catalog, catalog, catalog, nil)
	report, err := svc.HasConflict(context.Background(), "stu-1", "sec-c")
	require.NoError(t, err)
	assert.True(t, report.Conflict)
	assert.Len(t, report.Conflicts, 2)
}

func TestHasConflictUnknownSection(t *testing.T) {
	svc := NewScheduleConflictService(newFakeCatalog(), newFakeCatalog(), newFakeCatalog(), nil)
	_, err := svc.HasConflict(context.Background(), "stu-1", "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSlotsOverlapBoundaries(t *testing.T) {
	cases := []struct {
		name string
		a, b models.TimeSlot
		want bool
	}{
		{"back to back", slot(models.Monday, "09:00", "10:00"), slot(models.Monday, "10:00", "11:00"), false},
		{"one minute overlap", slot(models.Monday, "09:00", "10:01"), slot(models.Monday, "10:00", "11:00"), true},
		{"different day", slot(models.Monday, "09:00", "10:00"), slot(models.Tuesday, "09:00", "10:00"), false},
		{"contained", slot(models.Friday, "08:00", "12:00"), slot(models.Friday, "09:00", "09:30"), true},
		{"seconds format", slot(models.Monday, "09:00:00", "10:30:00"), slot("Monday", "10:00", "11:30"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ab, err := SlotsOverlap(tc.a, tc.b)
			require.NoError(t, err)
			ba, err := SlotsOverlap(tc.b, tc.a)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ab)
			assert.Equal(t, ab, ba, "overlap must be symmetric")
		})
	}
}

func TestSlotsOverlapSymmetricExhaustive(t *testing.T) {
	for s1 := 0; s1 < 8; s1++ {
		for e1 := s1 + 1; e1 <= 8; e1++ {
			for s2 := 0; s2 < 8; s2++ {
				for e2 := s2 + 1; e2 <= 8; e2++ {
					a := slot(models.Thursday, models.FormatClock(600+s1*15), models.FormatClock(600+e1*15))
					b := slot(models.Thursday, models.FormatClock(600+s2*15), models.FormatClock(600+e2*15))
					ab, err := SlotsOverlap(a, b)
					require.NoError(t, err)
					ba, err := SlotsOverlap(b, a)
					require.NoError(t, err)
					require.Equal(t, ab, ba)
				}
			}
		}
	}
}

func TestFindConflictsRejectsMalformedSlots(t *testing.T) {
	_, err := FindConflicts(
		[]models.TimeSlot{slot(models.Monday, "10:00", "09:00")},
		[]models.TimeSlot{slot(models.Monday, "09:00", "10:00")},
		nil,
	)
	assert.Error(t, err)
}
