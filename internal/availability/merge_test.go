package availability

import (
	"math/rand"
	"testing"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

var base = time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func timed(h1, m1, h2, m2 int) domain.Occurrence {
	return domain.Occurrence{Start: at(h1, m1), End: at(h2, m2)}
}

func allDay() domain.Occurrence {
	return domain.Occurrence{Start: base, End: base.Add(24 * time.Hour), IsAllDay: true}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.Occurrence
		want []domain.Block
	}{
		{
			name: "overlap",
			in:   []domain.Occurrence{timed(9, 0, 10, 0), timed(9, 30, 11, 0)},
			want: []domain.Block{{Start: at(9, 0), End: at(11, 0)}},
		},
		{
			name: "touching",
			in:   []domain.Occurrence{timed(9, 0, 10, 0), timed(10, 0, 11, 0)},
			want: []domain.Block{{Start: at(9, 0), End: at(11, 0)}},
		},
		{
			name: "gap",
			in:   []domain.Occurrence{timed(9, 0, 10, 0), timed(10, 1, 11, 0)},
			want: []domain.Block{{Start: at(9, 0), End: at(10, 0)}, {Start: at(10, 1), End: at(11, 0)}},
		},
		{
			name: "contained",
			in:   []domain.Occurrence{timed(8, 0, 12, 0), timed(9, 0, 10, 0)},
			want: []domain.Block{{Start: at(8, 0), End: at(12, 0)}},
		},
		{
			name: "all-day collapses and leads",
			in:   []domain.Occurrence{timed(13, 0, 14, 0), allDay(), allDay()},
			want: []domain.Block{{Start: base, End: base.Add(24 * time.Hour), IsAllDay: true}, {Start: at(13, 0), End: at(14, 0)}},
		},
		{
			name: "empty",
			in:   nil,
			want: []domain.Block{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in)
			assertBlocks(t, got, tt.want)
		})
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	in := []domain.Occurrence{
		timed(9, 0, 9, 30),
		timed(9, 0, 10, 0),
		timed(14, 0, 15, 0),
		timed(9, 45, 10, 30),
		timed(16, 0, 16, 30),
		timed(15, 0, 15, 15),
	}
	want := Merge(in)
	assertBlocks(t, want, []domain.Block{
		{Start: at(9, 0), End: at(10, 30)},
		{Start: at(14, 0), End: at(15, 15)},
		{Start: at(16, 0), End: at(16, 30)},
	})

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Occurrence(nil), in...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assertBlocks(t, Merge(shuffled), want)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	in := []domain.Occurrence{timed(11, 0, 12, 0), timed(9, 0, 10, 0)}
	Merge(in)
	if !in[0].Start.Equal(at(11, 0)) {
		t.Fatal("input order changed")
	}
}

func assertBlocks(t *testing.T, got, want []domain.Block) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) || got[i].IsAllDay != want[i].IsAllDay {
			t.Fatalf("block %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
