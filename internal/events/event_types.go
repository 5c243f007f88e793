package events

import (
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUnavailabilityCreated EventType = "unavailability.created"
	EventUnavailabilityUpdated EventType = "unavailability.updated"
	EventUnavailabilityDeleted EventType = "unavailability.deleted"
	EventLessonProposed        EventType = "lesson.proposed"
	EventLessonUpdated         EventType = "lesson.updated"
	EventLessonConfirmed       EventType = "lesson.confirmed"
	EventLessonRejected        EventType = "lesson.rejected"
	EventLessonCancelled       EventType = "lesson.cancelled"
	EventLessonDeleted         EventType = "lesson.deleted"
	EventTardinessAlert        EventType = "lesson.tardiness_alert"
)

// LessonEventTypes lists every event that carries a LessonPayload.
var LessonEventTypes = []EventType{
	EventLessonProposed,
	EventLessonUpdated,
	EventLessonConfirmed,
	EventLessonRejected,
	EventLessonCancelled,
	EventLessonDeleted,
}

// Actor is the authenticated user behind an event.
type Actor struct {
	UserID string `json:"user_id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// UnavailabilityPayload snapshots the rule after the change.
type UnavailabilityPayload struct {
	Rule domain.UnavailabilityRule `json:"rule"`
}

// LessonPayload snapshots the lesson after the change.
type LessonPayload struct {
	Lesson         domain.Lesson       `json:"lesson"`
	PreviousStatus domain.LessonStatus `json:"previous_status,omitempty"`
}

// TardinessPayload carries the waiting participant's display name.
type TardinessPayload struct {
	Lesson     domain.Lesson `json:"lesson"`
	SenderName string        `json:"sender_name"`
}
