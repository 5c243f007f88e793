package domain

import "time"

// UnavailabilityRule is a recurring or single block of time its owner cannot
// be booked. Start and End are the authored occurrence in UTC; Timezone is the
// zone the owner authored it in and anchors every later occurrence.
type UnavailabilityRule struct {
	ID         string
	UserID     string
	Start      time.Time
	End        time.Time
	IsAllDay   bool
	Recurrence Recurrence
	Timezone   string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Duration of the authored occurrence.
func (r *UnavailabilityRule) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// UnavailabilityPatch carries the owner-editable fields of a rule.
type UnavailabilityPatch struct {
	Start      *time.Time
	End        *time.Time
	IsAllDay   *bool
	Recurrence Recurrence
	Timezone   *string
}
