package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Options maps a Recurrence onto rrule options anchored at dtstart. None has
// no rule and reports false.
func Options(rec domain.Recurrence, dtstart time.Time) (rrule.ROption, bool) {
	opt := rrule.ROption{Dtstart: dtstart}
	switch r := rec.(type) {
	case domain.Daily:
		opt.Freq = rrule.DAILY
	case domain.Weekdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case domain.Weekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range r.Days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	default:
		return rrule.ROption{}, false
	}
	return opt, true
}

// RRule renders rec as an RFC 5545 RRULE value without DTSTART, or "" for a
// single occurrence.
func RRule(rec domain.Recurrence) string {
	opt, ok := Options(rec, time.Time{})
	if !ok {
		return ""
	}
	return opt.RRuleString()
}
