// Package recurrence materializes unavailability rules onto calendar dates.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

// ErrInvalidRule reports a stored rule that cannot be expanded.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Occurs reports whether a recurrence authored on authored has an occurrence
// on target. Dates are compared as calendar dates only.
func Occurs(rec domain.Recurrence, authored, target timezone.Date) (bool, error) {
	if target.Before(authored) {
		return false, nil
	}
	switch r := rec.(type) {
	case domain.None:
		return target == authored, nil
	case domain.Daily:
		return true, nil
	case domain.Weekdays:
		wd := target.Weekday()
		return wd >= time.Monday && wd <= time.Friday, nil
	case domain.Weekly:
		if len(r.Days) == 0 {
			return false, fmt.Errorf("%w: %v", ErrInvalidRule, domain.ErrWeeklyDays)
		}
		return r.Includes(target.Weekday()), nil
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidRule, domain.ErrUnknownRecurrence)
}

// Expand returns the rule's occurrence on target, if any. target is a date in
// the rule's own zone. The authored date returns the stored instants as is;
// any other date keeps the authored hour and minute in the rule's zone.
// All-day rules always cover the whole target date.
func Expand(rule *domain.UnavailabilityRule, target timezone.Date) (domain.Occurrence, bool, error) {
	loc, err := timezone.LoadZone(rule.Timezone)
	if err != nil {
		return domain.Occurrence{}, false, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	if !rule.End.After(rule.Start) {
		return domain.Occurrence{}, false, fmt.Errorf("%w: rule %s ends before it starts", ErrInvalidRule, rule.ID)
	}

	authored := timezone.DateOf(rule.Start, loc)
	ok, err := Occurs(rule.Recurrence, authored, target)
	if err != nil || !ok {
		return domain.Occurrence{}, false, err
	}

	occ := domain.Occurrence{
		RuleID:   rule.ID,
		UserID:   rule.UserID,
		IsAllDay: rule.IsAllDay,
		Date:     target,
	}
	switch {
	case rule.IsAllDay:
		occ.Start, occ.End = timezone.DayWindow(target, loc)
	case target == authored:
		occ.Start, occ.End = rule.Start.UTC(), rule.End.UTC()
	default:
		occ.Start, occ.End, err = reanchor(rule, target, loc)
		if err != nil {
			return domain.Occurrence{}, false, err
		}
	}
	return occ, true, nil
}

// reanchor moves the authored wall-clock span onto target. A span that
// crossed midnight keeps its day offset; if a DST shift would collapse the
// span, the authored duration wins.
func reanchor(rule *domain.UnavailabilityRule, target timezone.Date, loc *time.Location) (time.Time, time.Time, error) {
	startDate, startClock, err := timezone.ToZonedWallClock(rule.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, endClock, err := timezone.ToZonedWallClock(rule.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start, err := timezone.ToInstant(target, startClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := timezone.ToInstant(target.AddDays(startDate.DaysUntil(endDate)), endClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		end = start.Add(rule.Duration().Truncate(time.Minute))
	}
	return start, end, nil
}

// ExpandRange walks from..to inclusive and collects every occurrence.
func ExpandRange(rule *domain.UnavailabilityRule, from, to timezone.Date) ([]domain.Occurrence, error) {
	if to.Before(from) {
		return nil, nil
	}
	out := make([]domain.Occurrence, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		occ, ok, err := Expand(rule, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, occ)
		}
	}
	return out, nil
}
