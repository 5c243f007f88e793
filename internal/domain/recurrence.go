package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// RecurrenceKind is the persisted discriminator of a Recurrence.
type RecurrenceKind string

const (
	RecurrenceNone     RecurrenceKind = "none"
	RecurrenceDaily    RecurrenceKind = "daily"
	RecurrenceWeekdays RecurrenceKind = "weekdays"
	RecurrenceWeekly   RecurrenceKind = "weekly"
)

var (
	ErrUnknownRecurrence = errors.New("unknown recurrence type")
	ErrWeeklyDays        = errors.New("weekly recurrence requires daysOfWeek")
	ErrWeekdayRange      = errors.New("daysOfWeek entries must be 0 (Sunday) to 6 (Saturday)")
)

// Recurrence is a closed set: None, Daily, Weekdays and Weekly. Switches
// over it are expected to handle every case.
type Recurrence interface {
	Kind() RecurrenceKind
	isRecurrence()
}

// None occurs on the authored date only.
type None struct{}

// Daily occurs every day on or after the authored date.
type Daily struct{}

// Weekdays occurs Monday through Friday on or after the authored date.
type Weekdays struct{}

// Weekly occurs on each listed weekday on or after the authored date.
// Days is sorted and free of duplicates.
type Weekly struct {
	Days []time.Weekday
}

func (None) Kind() RecurrenceKind     { return RecurrenceNone }
func (Daily) Kind() RecurrenceKind    { return RecurrenceDaily }
func (Weekdays) Kind() RecurrenceKind { return RecurrenceWeekdays }
func (Weekly) Kind() RecurrenceKind   { return RecurrenceWeekly }

func (None) isRecurrence()     {}
func (Daily) isRecurrence()    {}
func (Weekdays) isRecurrence() {}
func (Weekly) isRecurrence()   {}

// Includes reports whether wd is one of the rule's weekdays.
func (w Weekly) Includes(wd time.Weekday) bool {
	return slices.Contains(w.Days, wd)
}

// NewWeekly validates and normalizes a weekday set.
func NewWeekly(days []int) (Weekly, error) {
	if len(days) == 0 {
		return Weekly{}, ErrWeeklyDays
	}
	seen := make(map[int]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return Weekly{}, fmt.Errorf("%w: got %d", ErrWeekdayRange, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, time.Weekday(d))
	}
	slices.Sort(out)
	return Weekly{Days: out}, nil
}

// ParseRecurrence builds a Recurrence from its persisted form. daysOfWeek is
// ignored for every kind except weekly.
func ParseRecurrence(kind string, daysOfWeek []int) (Recurrence, error) {
	switch RecurrenceKind(kind) {
	case RecurrenceNone, "":
		return None{}, nil
	case RecurrenceDaily:
		return Daily{}, nil
	case RecurrenceWeekdays:
		return Weekdays{}, nil
	case RecurrenceWeekly:
		return NewWeekly(daysOfWeek)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRecurrence, kind)
}

// EncodeRecurrence is the inverse of ParseRecurrence.
func EncodeRecurrence(r Recurrence) (string, []int) {
	switch rec := r.(type) {
	case Weekly:
		days := make([]int, len(rec.Days))
		for i, d := range rec.Days {
			days[i] = int(d)
		}
		return string(RecurrenceWeekly), days
	case nil:
		return string(RecurrenceNone), nil
	default:
		return string(r.Kind()), nil
	}
}
