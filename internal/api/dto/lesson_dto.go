package dto

import (
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

// LessonTimeRequest gives a lesson's range either as RFC3339 instants or as
// date + wall-clock times in the caller's profile zone.
type LessonTimeRequest struct {
	Start     *time.Time `json:"start"`
	End       *time.Time `json:"end"`
	Date      string     `json:"date"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
}

// CancelLessonRequest carries the reason shown to the partner.
type CancelLessonRequest struct {
	Reason string `json:"reason"`
}

// LessonResponse is a lesson with its derived completed flag.
type LessonResponse struct {
	ID                 string              `json:"id"`
	ProposedBy         string              `json:"proposed_by"`
	ConfirmedBy        *string             `json:"confirmed_by"`
	CancelledBy        *string             `json:"cancelled_by"`
	Start              time.Time           `json:"start"`
	End                time.Time           `json:"end"`
	Status             domain.LessonStatus `json:"status"`
	CancellationReason *string             `json:"cancellation_reason"`
	Completed          bool                `json:"completed"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
