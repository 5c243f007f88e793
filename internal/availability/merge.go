// Package availability reduces rule occurrences into display blocks.
package availability

import (
	"slices"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

// Merge unions occurrences for one day. Any number of all-day occurrences
// collapse into a single all-day block, emitted first. Timed occurrences are
// ordered by start then end and swept: an occurrence starting at or before the
// open block's end extends it, anything later opens a new block.
func Merge(occurrences []domain.Occurrence) []domain.Block {
	var (
		allDay    domain.Block
		hasAllDay bool
		timed     = make([]domain.Occurrence, 0, len(occurrences))
	)
	for _, occ := range occurrences {
		switch {
		case !occ.IsAllDay:
			timed = append(timed, occ)
		case !hasAllDay:
			allDay = domain.Block{Start: occ.Start, End: occ.End, IsAllDay: true}
			hasAllDay = true
		default:
			if occ.Start.Before(allDay.Start) {
				allDay.Start = occ.Start
			}
			if occ.End.After(allDay.End) {
				allDay.End = occ.End
			}
		}
	}

	out := make([]domain.Block, 0, len(timed)+1)
	if hasAllDay {
		out = append(out, allDay)
	}
	if len(timed) == 0 {
		return out
	}

	slices.SortFunc(timed, func(a, b domain.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	cur := domain.Block{Start: timed[0].Start, End: timed[0].End}
	for _, next := range timed[1:] {
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		out = append(out, cur)
		cur = domain.Block{Start: next.Start, End: next.End}
	}
	return append(out, cur)
}
