package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
)

// Graded reports whether the status carries a finalised grade.
func (s EnrollmentStatus) Graded() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusFailed
}

// Enrollment ties a student to a course section. Rows in terminal states are retained for transcripts.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	SectionID       string           `db:"section_id" json:"section_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	EnrollmentDate  time.Time        `db:"enrollment_date" json:"enrollment_date"`
	DropDate        *time.Time       `db:"drop_date" json:"drop_date,omitempty"`
	IsRepeat        bool             `db:"is_repeat" json:"is_repeat"`
	Midterm         *float64         `db:"midterm" json:"midterm,omitempty"`
	Final           *float64         `db:"final" json:"final,omitempty"`
	Homework        *float64         `db:"homework" json:"homework,omitempty"`
	Average         *float64         `db:"average" json:"average,omitempty"`
	LetterGrade     *LetterGrade     `db:"letter_grade" json:"letter_grade,omitempty"`
	GradePoint      *float64         `db:"grade_point" json:"grade_point,omitempty"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Components returns the raw grade components currently stored.
func (e Enrollment) Components() GradeComponents {
	return GradeComponents{Midterm: e.Midterm, Final: e.Final, Homework: e.Homework}
}

// EnrollmentDetail enriches Enrollment with the section's course and term.
type EnrollmentDetail struct {
	Enrollment
	CourseID   string   `db:"course_id" json:"course_id"`
	CourseCode string   `db:"course_code" json:"course_code"`
	Credits    float64  `db:"credits" json:"credits"`
	Semester   Semester `db:"semester" json:"semester"`
	Year       int      `db:"year" json:"year"`
}

// CapacityStatus is the seat picture reported by an eligibility check.
type CapacityStatus struct {
	Capacity  int  `json:"capacity" yaml:"capacity"`
	Enrolled  int  `json:"enrolled" yaml:"enrolled"`
	Available int  `json:"available" yaml:"available"`
	Full      bool `json:"full" yaml:"full"`
}

// EligibilityReport mirrors the enroll pipeline without mutating anything.
type EligibilityReport struct {
	StudentID     string            `json:"student_id" yaml:"student_id"`
	SectionID     string            `json:"section_id" yaml:"section_id"`
	Eligible      bool              `json:"eligible" yaml:"eligible"`
	SectionActive bool              `json:"section_active" yaml:"section_active"`
	Capacity      CapacityStatus    `json:"capacity" yaml:"capacity"`
	Duplicate     *string           `json:"duplicate,omitempty" yaml:"duplicate,omitempty"`
	Prerequisites PrerequisiteCheck `json:"prerequisites" yaml:"prerequisites"`
	Conflicts     ConflictReport    `json:"conflicts" yaml:"conflicts"`
	IsRepeat      bool              `json:"is_repeat" yaml:"is_repeat"`
}
