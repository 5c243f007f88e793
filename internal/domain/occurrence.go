package domain

import (
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

// Occurrence is one calendar-day materialization of an UnavailabilityRule.
// Date is the occurring date in the rule's own zone.
type Occurrence struct {
	RuleID   string
	UserID   string
	Start    time.Time
	End      time.Time
	IsAllDay bool
	Date     timezone.Date
}

// Block is a merged display interval.
type Block struct {
	Start    time.Time
	End      time.Time
	IsAllDay bool
}
