package models

// StudentSection is a section a student currently holds, with course context.
type StudentSection struct {
	EnrollmentID string   `db:"enrollment_id" json:"enrollment_id"`
	SectionID    string   `db:"section_id" json:"section_id"`
	SectionCode  string   `db:"section_code" json:"section_code"`
	CourseID     string   `db:"course_id" json:"course_id"`
	CourseCode   string   `db:"course_code" json:"course_code"`
	CourseName   string   `db:"course_name" json:"course_name"`
	Semester     Semester `db:"semester" json:"semester"`
	Year         int      `db:"year" json:"year"`
}

// ScheduleConflict is one overlapping pair between the candidate section and a held section.
type ScheduleConflict struct {
	Day                Weekday `json:"day" yaml:"day"`
	CandidateSectionID string  `json:"candidate_section_id" yaml:"candidate_section_id"`
	CandidateStart     string  `json:"candidate_start" yaml:"candidate_start"`
	CandidateEnd       string  `json:"candidate_end" yaml:"candidate_end"`
	ExistingSectionID  string  `json:"existing_section_id" yaml:"existing_section_id"`
	ExistingCourseCode string  `json:"existing_course_code" yaml:"existing_course_code"`
	ExistingStart      string  `json:"existing_start" yaml:"existing_start"`
	ExistingEnd        string  `json:"existing_end" yaml:"existing_end"`
}

// ConflictReport lists every conflicting pair, not just the first.
type ConflictReport struct {
	Conflict  bool               `json:"conflict" yaml:"conflict"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// WeeklyScheduleEntry is one row of a student's weekly timetable.
type WeeklyScheduleEntry struct {
	Day         Weekday `json:"day" yaml:"day"`
	Start       string  `json:"start" yaml:"start"`
	End         string  `json:"end" yaml:"end"`
	CourseID    string  `json:"course_id" yaml:"course_id"`
	CourseCode  string  `json:"course_code" yaml:"course_code"`
	CourseName  string  `json:"course_name" yaml:"course_name"`
	SectionID   string  `json:"section_id" yaml:"section_id"`
	SectionCode string  `json:"section_code" yaml:"section_code"`
	Room        *string `json:"room,omitempty" yaml:"room,omitempty"`
}
