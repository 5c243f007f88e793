package availability

import (
	"fmt"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/recurrence"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

// Occurrences collects what the rules contribute to day as seen from viewer.
// A rule is expanded on every date of its own zone that the viewer's day
// touches, plus the date before for occurrences that cross midnight. Zones
// can be more than a day apart, so that range is taken from the viewer's
// window rather than from day itself. Timed occurrences are kept
// when they intersect the viewer's day and are clipped to it. All-day
// occurrences are kept only for the requested date itself.
func Occurrences(rules []*domain.UnavailabilityRule, day timezone.Date, viewer *time.Location) ([]domain.Occurrence, error) {
	if viewer == nil {
		return nil, timezone.ErrZoneRequired
	}
	windowStart, windowEnd := timezone.DayWindow(day, viewer)

	var out []domain.Occurrence
	for _, rule := range rules {
		ruleLoc, err := timezone.LoadZone(rule.Timezone)
		if err != nil {
			return nil, fmt.Errorf("expand rule %s: %w", rule.ID, err)
		}
		last := timezone.DateOf(windowEnd, ruleLoc)
		for target := timezone.DateOf(windowStart, ruleLoc).AddDays(-1); !target.After(last); target = target.AddDays(1) {
			occ, ok, err := recurrence.Expand(rule, target)
			if err != nil {
				return nil, fmt.Errorf("expand rule %s: %w", rule.ID, err)
			}
			if !ok {
				continue
			}
			if occ.IsAllDay {
				if occ.Date == day {
					out = append(out, occ)
				}
				continue
			}
			if !occ.Start.Before(windowEnd) || !occ.End.After(windowStart) {
				continue
			}
			if occ.Start.Before(windowStart) {
				occ.Start = windowStart
			}
			if occ.End.After(windowEnd) {
				occ.End = windowEnd
			}
			out = append(out, occ)
		}
	}
	return out, nil
}

// DayView is the merged unavailability of the rules on day for a viewer.
func DayView(rules []*domain.UnavailabilityRule, day timezone.Date, viewer *time.Location) ([]domain.Block, error) {
	occs, err := Occurrences(rules, day, viewer)
	if err != nil {
		return nil, err
	}
	return Merge(occs), nil
}
