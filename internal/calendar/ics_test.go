package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
)

func TestRender(t *testing.T) {
	weekly, _ := domain.NewWeekly([]int{1, 3})
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feed := Feed{
		Name:  "tutor",
		Stamp: stamp,
		Rules: []*domain.UnavailabilityRule{
			{
				ID:         "rule-weekly",
				Start:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 1, 5, 1, 0, 0, 0, time.UTC),
				Recurrence: weekly,
				Timezone:   "Asia/Seoul",
				Version:    2,
			},
			{
				ID:         "rule-allday",
				Start:      time.Date(2026, 1, 9, 15, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC),
				IsAllDay:   true,
				Recurrence: domain.None{},
				Timezone:   "Asia/Seoul",
				Version:    1,
			},
		},
		Lessons: []*domain.Lesson{
			{ID: "pending", Start: stamp.Add(time.Hour), End: stamp.Add(2 * time.Hour), Status: domain.LessonStatusPending, Version: 1},
			{ID: "confirmed", Start: stamp.Add(3 * time.Hour), End: stamp.Add(4 * time.Hour), Status: domain.LessonStatusConfirmed, Version: 2},
			{ID: "cancelled", Start: stamp, End: stamp.Add(time.Hour), Status: domain.LessonStatusCancelled, Version: 3},
		},
	}

	out, err := Render(feed)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	evs := cal.Events()
	if len(evs) != 4 {
		t.Fatalf("expected 4 events (cancelled lesson dropped), got %d", len(evs))
	}

	byID := map[string]*ics.VEvent{}
	for _, ev := range evs {
		byID[ev.Id()] = ev
	}

	weeklyEv := byID["rule-weekly@lesson-scheduler"]
	if weeklyEv == nil {
		t.Fatal("weekly rule missing")
	}
	dtstart := weeklyEv.GetProperty(ics.ComponentPropertyDtStart)
	if dtstart.Value != "20260105T090000" || dtstart.ICalParameters["TZID"][0] != "Asia/Seoul" {
		t.Fatalf("unexpected DTSTART %q %v", dtstart.Value, dtstart.ICalParameters)
	}
	rr := weeklyEv.GetProperty(ics.ComponentPropertyRrule)
	if rr == nil || !strings.Contains(rr.Value, "FREQ=WEEKLY") || !strings.Contains(rr.Value, "BYDAY=MO,WE") {
		t.Fatalf("unexpected RRULE %+v", rr)
	}

	allDay := byID["rule-allday@lesson-scheduler"]
	if v := allDay.GetProperty(ics.ComponentPropertyDtStart).Value; v != "20260110" {
		t.Fatalf("all-day start should be the Seoul date, got %q", v)
	}
	if allDay.GetProperty(ics.ComponentPropertyRrule) != nil {
		t.Fatal("single rule must not carry an RRULE")
	}

	if s := byID["pending@lesson-scheduler"].GetProperty(ics.ComponentPropertyStatus).Value; s != string(ics.ObjectStatusTentative) {
		t.Fatalf("pending lesson status %q", s)
	}
	if s := byID["confirmed@lesson-scheduler"].GetProperty(ics.ComponentPropertyStatus).Value; s != string(ics.ObjectStatusConfirmed) {
		t.Fatalf("confirmed lesson status %q", s)
	}
}

func TestRenderUnknownZone(t *testing.T) {
	_, err := Render(Feed{Rules: []*domain.UnavailabilityRule{{ID: "r", Timezone: ""}}})
	if err == nil {
		t.Fatal("expected error for a rule without zone")
	}
}
