package domain

import "time"

// LessonStatus enumerates lifecycle states for lessons.
type LessonStatus string

const (
	LessonStatusPending   LessonStatus = "pending"
	LessonStatusConfirmed LessonStatus = "confirmed"
	LessonStatusCancelled LessonStatus = "cancelled"
	LessonStatusRejected  LessonStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusPending, LessonStatusConfirmed, LessonStatusCancelled, LessonStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s LessonStatus) Terminal() bool {
	return s == LessonStatusCancelled || s == LessonStatusRejected
}

// Lesson is a discrete booking proposed by one partner and decided by the other.
type Lesson struct {
	ID                 string
	ProposedBy         string
	ConfirmedBy        *string
	CancelledBy        *string
	Start              time.Time
	End                time.Time
	Status             LessonStatus
	CancellationReason *string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsParticipant reports whether userID holds a role on the lesson. The
// confirmer stops counting once a lesson is cancelled, because ConfirmedBy
// is cleared then.
func (l *Lesson) IsParticipant(userID string) bool {
	if l.ProposedBy == userID {
		return true
	}
	return l.ConfirmedBy != nil && *l.ConfirmedBy == userID
}

// Completed is derived: a confirmed lesson whose end has passed.
func (l *Lesson) Completed(now time.Time) bool {
	return l.Status == LessonStatusConfirmed && !now.Before(l.End)
}

// InProgress reports whether now falls within [Start, End].
func (l *Lesson) InProgress(now time.Time) bool {
	return !now.Before(l.Start) && !now.After(l.End)
}

// Clone returns a deep copy so guards can mutate without touching the original.
func (l *Lesson) Clone() *Lesson {
	c := *l
	c.ConfirmedBy = cloneString(l.ConfirmedBy)
	c.CancelledBy = cloneString(l.CancelledBy)
	c.CancellationReason = cloneString(l.CancellationReason)
	return &c
}

// LessonPatch carries the editable fields of a pending lesson.
type LessonPatch struct {
	Start *time.Time
	End   *time.Time
}

// Empty reports whether the patch changes nothing.
func (p LessonPatch) Empty() bool {
	return p.Start == nil && p.End == nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
