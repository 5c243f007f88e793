package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/repository/repotest"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

func mustDate(t *testing.T, s string) timezone.Date {
	t.Helper()
	d, err := timezone.ParseDate(s)
	if err != nil {
		t.Fatalf("date %s: %v", s, err)
	}
	return d
}

func TestAvailabilityRules(t *testing.T) {
	e := newEnv(t)
	svc := NewAvailabilityService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	outsider := repotest.NewUser(t, e.users, "outsider", "UTC")

	weekly, _ := domain.NewWeekly([]int{3, 1, 3})
	monday := mustDate(t, "2026-01-05")
	rule, err := svc.Create(ctx, tutor.ID, RuleInput{
		Date:       monday,
		StartTime:  timezone.Clock{Hour: 9},
		EndTime:    timezone.Clock{Hour: 10},
		Recurrence: weekly,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rule.Timezone != "Asia/Seoul" || rule.Start != time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("rule not authored in the profile zone: %+v", rule)
	}
	if w := rule.Recurrence.(domain.Weekly); len(w.Days) != 2 {
		t.Fatalf("weekly days should be normalized, got %v", w.Days)
	}

	// The student in Manila sees the tutor's Wednesday block an hour earlier.
	blocks, err := svc.Day(ctx, student.ID, tutor.ID, mustDate(t, "2026-01-07"))
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if len(blocks) != 1 || !blocks[0].Start.Equal(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected blocks %+v", blocks)
	}
	if blocks, _ := svc.Day(ctx, student.ID, tutor.ID, mustDate(t, "2026-01-06")); len(blocks) != 0 {
		t.Fatalf("expected no block on Tuesday, got %+v", blocks)
	}

	_, err = svc.Day(ctx, outsider.ID, tutor.ID, monday)
	expectCode(t, err, apperrors.CodeForbidden)
	_, err = svc.List(ctx, outsider.ID, tutor.ID)
	expectCode(t, err, apperrors.CodeForbidden)
	if rules, err := svc.List(ctx, student.ID, tutor.ID); err != nil || len(rules) != 1 {
		t.Fatalf("partner list: %v %v", rules, err)
	}
	if rules, err := svc.List(ctx, tutor.ID, ""); err != nil || len(rules) != 1 {
		t.Fatalf("own list: %v %v", rules, err)
	}

	eleven := timezone.Clock{Hour: 11}
	_, err = svc.Update(ctx, student.ID, rule.ID, RulePatch{EndTime: &eleven})
	expectCode(t, err, apperrors.CodeForbidden)
	_, err = svc.Update(ctx, tutor.ID, rule.ID, RulePatch{})
	expectCode(t, err, apperrors.CodeValidation)

	updated, err := svc.Update(ctx, tutor.ID, rule.ID, RulePatch{EndTime: &eleven})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Duration() != 2*time.Hour || !updated.Start.Equal(rule.Start) {
		t.Fatalf("unexpected update %+v", updated)
	}

	err = svc.Delete(ctx, student.ID, rule.ID)
	expectCode(t, err, apperrors.CodeForbidden)
	if err := svc.Delete(ctx, tutor.ID, rule.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.Get(ctx, tutor.ID, rule.ID)
	expectCode(t, err, apperrors.CodeNotFound)

	want := []events.EventType{events.EventUnavailabilityCreated, events.EventUnavailabilityUpdated, events.EventUnavailabilityDeleted}
	got := e.events.types()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
}

func TestAvailabilityValidation(t *testing.T) {
	e := newEnv(t)
	svc := NewAvailabilityService(e.deps)
	ctx := context.Background()
	tutor, _ := e.pair(t)

	_, err := svc.Create(ctx, tutor.ID, RuleInput{StartTime: timezone.Clock{Hour: 9}, EndTime: timezone.Clock{Hour: 10}})
	expectCode(t, err, apperrors.CodeValidation)

	_, err = svc.Create(ctx, tutor.ID, RuleInput{Date: mustDate(t, "2026-01-05"), Recurrence: domain.Weekly{}})
	expectCode(t, err, apperrors.CodeValidation)

	_, err = svc.Create(ctx, tutor.ID, RuleInput{Date: mustDate(t, "2026-01-05"), StartTime: timezone.Clock{Hour: 25}})
	expectCode(t, err, apperrors.CodeValidation)

	ten := timezone.Clock{Hour: 10}
	_, err = svc.Create(ctx, tutor.ID, RuleInput{Date: mustDate(t, "2026-01-05"), StartTime: ten, EndTime: ten})
	expectCode(t, err, apperrors.CodeValidation)

	rule, err := svc.Create(ctx, tutor.ID, RuleInput{Date: mustDate(t, "2026-01-05"), StartTime: timezone.Clock{Hour: 9}, EndTime: ten})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	nine := timezone.Clock{Hour: 9}
	_, err = svc.Update(ctx, tutor.ID, rule.ID, RulePatch{EndTime: &nine})
	expectCode(t, err, apperrors.CodeValidation)
}

func TestAllDayAndCrossMidnightRules(t *testing.T) {
	e := newEnv(t)
	svc := NewAvailabilityService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	day := mustDate(t, "2026-01-05")

	allDay, err := svc.Create(ctx, tutor.ID, RuleInput{Date: day, IsAllDay: true, StartTime: timezone.Clock{Hour: 13}})
	if err != nil {
		t.Fatalf("all-day: %v", err)
	}
	start, end := timezone.DayWindow(day, mustZone(t, "Asia/Seoul"))
	if !allDay.Start.Equal(start) || !allDay.End.Equal(end) {
		t.Fatalf("all-day rule should be normalized to the day, got %s-%s", allDay.Start, allDay.End)
	}
	if allDay.Recurrence.Kind() != domain.RecurrenceNone {
		t.Fatalf("missing recurrence should mean none, got %s", allDay.Recurrence.Kind())
	}

	late, err := svc.Create(ctx, student.ID, RuleInput{Date: day, StartTime: timezone.Clock{Hour: 23}, EndTime: timezone.Clock{Hour: 1}, Recurrence: domain.Daily{}})
	if err != nil {
		t.Fatalf("cross midnight: %v", err)
	}
	if late.Duration() != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", late.Duration())
	}
}

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := timezone.LoadZone(name)
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	return loc
}
