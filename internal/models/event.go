package models

import "time"

// EventType names a domain event emitted after a committed change.
type EventType string

const (
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventEnrollmentRequested EventType = "enrollment.requested"
	EventEnrollmentApproved  EventType = "enrollment.approved"
	EventEnrollmentRejected  EventType = "enrollment.rejected"
	EventEnrollmentDropped   EventType = "enrollment.dropped"
	EventEnrollmentWithdrawn EventType = "enrollment.withdrawn"
	EventGradesUpdated       EventType = "grades.updated"
	EventGPARecomputed       EventType = "gpa.recomputed"
)

// DomainEvent is handed to notification sinks. Sinks may fail; the originating operation never does because of them.
type DomainEvent struct {
	ID            string                 `json:"id"`
	Type          EventType              `json:"type"`
	StudentID     string                 `json:"student_id"`
	EnrollmentID  string                 `json:"enrollment_id,omitempty"`
	SectionID     string                 `json:"section_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}
