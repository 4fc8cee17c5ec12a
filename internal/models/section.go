package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Semester identifies the part of an academic year a section runs in.
type Semester string

const (
	SemesterSpring Semester = "spring"
	SemesterSummer Semester = "summer"
	SemesterFall   Semester = "fall"
)

// Order returns the chronological position of s within a year, 0 for unknown.
func (s Semester) Order() int {
	switch s {
	case SemesterSpring:
		return 1
	case SemesterSummer:
		return 2
	case SemesterFall:
		return 3
	default:
		return 0
	}
}

// ParseSemester normalises user input.
func ParseSemester(raw string) (Semester, bool) {
	s := Semester(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Order() > 0
}

// Weekday is a lower-case English day name as stored in section_time_slots.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayOrder = map[Weekday]int{
	Monday: 1, Tuesday: 2, Wednesday: 3, Thursday: 4, Friday: 5, Saturday: 6, Sunday: 7,
}

// Index returns 1 for monday through 7 for sunday, 0 for unknown values.
func (d Weekday) Index() int {
	return weekdayOrder[d]
}

// Normalize lower-cases and trims d.
func (d Weekday) Normalize() Weekday {
	return Weekday(strings.ToLower(strings.TrimSpace(string(d))))
}

// CourseSection is one offering of a course in a term.
// EnrolledCount is only ever changed through the conditional seat update.
type CourseSection struct {
	ID            string   `db:"id" json:"id"`
	CourseID      string   `db:"course_id" json:"course_id"`
	SectionCode   string   `db:"section_code" json:"section_code"`
	Semester      Semester `db:"semester" json:"semester"`
	Year          int      `db:"year" json:"year"`
	Capacity      int      `db:"capacity" json:"capacity"`
	EnrolledCount int      `db:"enrolled_count" json:"enrolled_count"`
	Active        bool     `db:"is_active" json:"is_active"`
	CourseCode    string   `db:"course_code" json:"course_code"`
	CourseName    string   `db:"course_name" json:"course_name"`
	CourseActive  bool     `db:"course_active" json:"course_active"`
}

// Full reports whether no seats remain.
func (s CourseSection) Full() bool {
	return s.EnrolledCount >= s.Capacity
}

// TimeSlot is a weekly recurring meeting of a section. Times are "HH:MM" or "HH:MM:SS".
type TimeSlot struct {
	ID        string  `db:"id" json:"id"`
	SectionID string  `db:"section_id" json:"section_id"`
	DayOfWeek Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime string  `db:"start_time" json:"start_time"`
	EndTime   string  `db:"end_time" json:"end_time"`
	Room      *string `db:"room" json:"room,omitempty"`
}

// Minutes normalises the slot to minutes since midnight.
func (t TimeSlot) Minutes() (start, end int, err error) {
	if start, err = ParseClock(t.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(t.EndTime); err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("time slot %s-%s ends before it starts", t.StartTime, t.EndTime)
	}
	return start, end, nil
}

// ParseClock converts "HH:MM" or "HH:MM:SS" into minutes since midnight. Seconds are ignored.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
