package models

import "strings"

// LetterGrade is one of the nine institutional grade bands.
type LetterGrade string

// Letter grades, lowest to highest.
const (
	GradeFF LetterGrade = "FF"
	GradeFD LetterGrade = "FD"
	GradeDD LetterGrade = "DD"
	GradeDC LetterGrade = "DC"
	GradeCC LetterGrade = "CC"
	GradeCB LetterGrade = "CB"
	GradeBB LetterGrade = "BB"
	GradeBA LetterGrade = "BA"
	GradeAA LetterGrade = "AA"
)

// DefaultMinimumGrade is the lowest passing band, used when a prerequisite edge has no explicit floor.
const DefaultMinimumGrade = GradeDD

// LetterGrades lists every band in ascending order.
var LetterGrades = []LetterGrade{GradeFF, GradeFD, GradeDD, GradeDC, GradeCC, GradeCB, GradeBB, GradeBA, GradeAA}

// Rank returns the position of g in the total order, or -1 for unknown values.
func (g LetterGrade) Rank() int {
	for i, band := range LetterGrades {
		if band == g {
			return i
		}
	}
	return -1
}

// Valid reports whether g is a known band.
func (g LetterGrade) Valid() bool {
	return g.Rank() >= 0
}

// AtLeast reports whether g meets or exceeds min. Unknown grades never satisfy a floor.
func (g LetterGrade) AtLeast(min LetterGrade) bool {
	r := g.Rank()
	if r < 0 {
		return false
	}
	return r >= min.Rank()
}

// ParseLetterGrade normalises user input such as " cc ".
func ParseLetterGrade(raw string) (LetterGrade, bool) {
	g := LetterGrade(strings.ToUpper(strings.TrimSpace(raw)))
	return g, g.Valid()
}

// GradeComponents are the raw scores entered for an enrollment. Nil means "not entered".
type GradeComponents struct {
	Midterm  *float64 `json:"midterm,omitempty" validate:"omitempty,gte=0,lte=100"`
	Final    *float64 `json:"final,omitempty" validate:"omitempty,gte=0,lte=100"`
	Homework *float64 `json:"homework,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// GradeWeights overrides the default component weighting.
type GradeWeights struct {
	Midterm  float64 `json:"midterm"`
	Final    float64 `json:"final"`
	Homework float64 `json:"homework"`
}

// GradedAttempt is one finalised enrollment feeding GPA aggregation.
type GradedAttempt struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	CourseCode   string           `db:"course_code" json:"course_code"`
	Credits      float64          `db:"credits" json:"credits"`
	Semester     Semester         `db:"semester" json:"semester"`
	Year         int              `db:"year" json:"year"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	LetterGrade  *LetterGrade     `db:"letter_grade" json:"letter_grade,omitempty"`
	GradePoint   *float64         `db:"grade_point" json:"grade_point,omitempty"`
	IsRepeat     bool             `db:"is_repeat" json:"is_repeat"`
}

// SemesterGPA is the credit-weighted average of one term.
type SemesterGPA struct {
	Semester Semester `json:"semester"`
	Year     int      `json:"year"`
	GPA      float64  `json:"gpa"`
	Credits  float64  `json:"credits"`
	Courses  int      `json:"courses"`
}

// AcademicSummary is the derived view recomputed from enrollment history.
type AcademicSummary struct {
	StudentID     string        `json:"student_id" yaml:"student_id"`
	GPA           float64       `json:"gpa" yaml:"gpa"`
	CGPA          float64       `json:"cgpa" yaml:"cgpa"`
	TotalCredits  float64       `json:"total_credits" yaml:"total_credits"`
	EarnedCredits float64       `json:"earned_credits" yaml:"earned_credits"`
	Semesters     []SemesterGPA `json:"semesters" yaml:"semesters"`
}
