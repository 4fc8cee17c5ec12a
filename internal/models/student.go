package models

import "time"

// Student holds cached academic aggregates that are only written by a full recompute.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	Active        bool      `db:"is_active" json:"is_active"`
	GPA           float64   `db:"gpa" json:"gpa"`
	CGPA          float64   `db:"cgpa" json:"cgpa"`
	TotalCredits  float64   `db:"total_credits" json:"total_credits"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
