package models

// Course is a catalogue entry. Code is unique.
type Course struct {
	ID           string  `db:"id" json:"id"`
	Code         string  `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	Credits      float64 `db:"credits" json:"credits"`
	ECTS         float64 `db:"ects" json:"ects"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	Active       bool    `db:"is_active" json:"is_active"`
}

// CoursePrerequisite is a directed edge course -> prerequisite with a grade floor.
type CoursePrerequisite struct {
	CourseID         string      `db:"course_id" json:"course_id"`
	PrerequisiteID   string      `db:"prerequisite_id" json:"prerequisite_id"`
	PrerequisiteCode string      `db:"prerequisite_code" json:"prerequisite_code"`
	PrerequisiteName string      `db:"prerequisite_name" json:"prerequisite_name"`
	MinGrade         LetterGrade `db:"min_grade" json:"min_grade"`
}

// PrerequisiteRequirement is one member of a course's prerequisite closure.
type PrerequisiteRequirement struct {
	CourseID   string      `json:"course_id" yaml:"course_id"`
	CourseCode string      `json:"course_code" yaml:"course_code"`
	CourseName string      `json:"course_name" yaml:"course_name"`
	MinGrade   LetterGrade `json:"min_grade" yaml:"min_grade"`
	// RequiredBy is the course whose edge introduced this requirement.
	RequiredBy string `json:"required_by" yaml:"required_by"`
}

// MissingPrerequisite explains an unsatisfied requirement.
type MissingPrerequisite struct {
	CourseID      string       `json:"course_id" yaml:"course_id"`
	CourseCode    string       `json:"course_code" yaml:"course_code"`
	CourseName    string       `json:"course_name" yaml:"course_name"`
	RequiredGrade LetterGrade  `json:"required_grade" yaml:"required_grade"`
	BestGrade     *LetterGrade `json:"best_grade,omitempty" yaml:"best_grade,omitempty"`
}

// PrerequisiteCheck is the outcome of checking a student against a course's closure.
type PrerequisiteCheck struct {
	CourseID  string                `json:"course_id" yaml:"course_id"`
	Satisfied bool                  `json:"satisfied" yaml:"satisfied"`
	Missing   []MissingPrerequisite `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// CompletedCourse is a passed attempt as seen by the prerequisite check.
type CompletedCourse struct {
	CourseID    string      `db:"course_id" json:"course_id"`
	LetterGrade LetterGrade `db:"letter_grade" json:"letter_grade"`
}
