package domain

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestParseRecurrence(t *testing.T) {
	tests := []struct {
		name string
		kind string
		days []int
		want Recurrence
		err  error
	}{
		{"none", "none", nil, None{}, nil},
		{"empty kind is none", "", nil, None{}, nil},
		{"daily ignores days", "daily", []int{1}, Daily{}, nil},
		{"weekdays", "weekdays", nil, Weekdays{}, nil},
		{"weekly normalizes", "weekly", []int{3, 1, 3}, Weekly{Days: []time.Weekday{time.Monday, time.Wednesday}}, nil},
		{"weekly without days", "weekly", nil, nil, ErrWeeklyDays},
		{"weekly out of range", "weekly", []int{7}, nil, ErrWeekdayRange},
		{"unknown", "monthly", nil, nil, ErrUnknownRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecurrence(tt.kind, tt.days)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind() != tt.want.Kind() {
				t.Fatalf("expected kind %s, got %s", tt.want.Kind(), got.Kind())
			}
			if w, ok := tt.want.(Weekly); ok && !slices.Equal(got.(Weekly).Days, w.Days) {
				t.Fatalf("expected days %v, got %v", w.Days, got.(Weekly).Days)
			}
		})
	}
}

func TestEncodeRecurrence(t *testing.T) {
	weekly, _ := NewWeekly([]int{5, 0})
	kind, days := EncodeRecurrence(weekly)
	if kind != "weekly" || !slices.Equal(days, []int{0, 5}) {
		t.Fatalf("unexpected encoding %s %v", kind, days)
	}
	kind, days = EncodeRecurrence(Weekdays{})
	if kind != "weekdays" || days != nil {
		t.Fatalf("unexpected encoding %s %v", kind, days)
	}
}

func TestLessonHelpers(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	confirmer := "b"
	l := &Lesson{
		ProposedBy:  "a",
		ConfirmedBy: &confirmer,
		Start:       now.Add(-time.Hour),
		End:         now,
		Status:      LessonStatusConfirmed,
	}
	if !l.IsParticipant("a") || !l.IsParticipant("b") || l.IsParticipant("c") {
		t.Fatal("participant mismatch")
	}
	if !l.Completed(now) || l.Completed(now.Add(-time.Minute)) {
		t.Fatal("completed mismatch")
	}
	if !l.InProgress(now) || l.InProgress(now.Add(time.Second)) {
		t.Fatal("in progress mismatch")
	}
	c := l.Clone()
	*c.ConfirmedBy = "z"
	if *l.ConfirmedBy != "b" {
		t.Fatal("clone must not share pointers")
	}
}
