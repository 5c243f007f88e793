package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/repository/repotest"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

func TestLessonLifecycle(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	outsider := repotest.NewUser(t, e.users, "outsider", "UTC")

	start := testNow.Add(48 * time.Hour)
	_, err := svc.Propose(ctx, tutor.ID, start, start)
	expectCode(t, err, apperrors.CodeValidation)

	lesson, err := svc.Propose(ctx, tutor.ID, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if lesson.Status != domain.LessonStatusPending || lesson.Version != 1 {
		t.Fatalf("unexpected proposal %+v", lesson)
	}

	_, err = svc.Confirm(ctx, tutor.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)
	_, err = svc.Confirm(ctx, outsider.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeForbidden)
	_, err = svc.Cancel(ctx, tutor.ID, lesson.ID, "sick")
	expectCode(t, err, apperrors.CodeInvalidTransition)

	confirmed, err := svc.Confirm(ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.LessonStatusConfirmed || *confirmed.ConfirmedBy != student.ID {
		t.Fatalf("unexpected confirmation %+v", confirmed)
	}

	later := start.Add(time.Hour)
	_, err = svc.Update(ctx, tutor.ID, lesson.ID, domain.LessonPatch{Start: &later})
	expectCode(t, err, apperrors.CodeInvalidTransition)
	err = svc.Delete(ctx, tutor.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)

	_, err = svc.Cancel(ctx, student.ID, lesson.ID, "   ")
	expectCode(t, err, apperrors.CodeValidation)
	_, err = svc.Cancel(ctx, outsider.ID, lesson.ID, "sick")
	expectCode(t, err, apperrors.CodeForbidden)

	cancelled, err := svc.Cancel(ctx, student.ID, lesson.ID, "sick")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.LessonStatusCancelled || *cancelled.CancellationReason != "sick" || *cancelled.CancelledBy != student.ID {
		t.Fatalf("unexpected cancellation %+v", cancelled)
	}
	if cancelled.ConfirmedBy != nil {
		t.Fatal("cancelled lesson must not keep confirmedBy")
	}
	_, err = svc.Confirm(ctx, student.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)

	want := []events.EventType{events.EventLessonProposed, events.EventLessonConfirmed, events.EventLessonCancelled}
	got := e.events.types()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
	last := e.events.all[len(e.events.all)-1].Payload.(events.LessonPayload)
	if last.PreviousStatus != domain.LessonStatusConfirmed {
		t.Fatalf("expected previous status confirmed, got %s", last.PreviousStatus)
	}
}

func TestLessonRejectUpdateDelete(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	start := testNow.Add(24 * time.Hour)

	lesson, err := svc.Propose(ctx, student.ID, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	moved := start.Add(2 * time.Hour)
	_, err = svc.Update(ctx, tutor.ID, lesson.ID, domain.LessonPatch{Start: &moved})
	expectCode(t, err, apperrors.CodeForbidden)
	_, err = svc.Update(ctx, student.ID, lesson.ID, domain.LessonPatch{Start: &moved})
	expectCode(t, err, apperrors.CodeValidation)

	movedEnd := moved.Add(90 * time.Minute)
	updated, err := svc.Update(ctx, student.ID, lesson.ID, domain.LessonPatch{Start: &moved, End: &movedEnd})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Start.Equal(moved) || updated.Version != 2 {
		t.Fatalf("unexpected update %+v", updated)
	}

	_, err = svc.Reject(ctx, student.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)
	rejected, err := svc.Reject(ctx, tutor.ID, lesson.ID)
	if err != nil || rejected.Status != domain.LessonStatusRejected {
		t.Fatalf("reject: %+v %v", rejected, err)
	}

	err = svc.Delete(ctx, tutor.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeForbidden)
	if err := svc.Delete(ctx, student.ID, lesson.ID); err != nil {
		t.Fatalf("delete rejected lesson: %v", err)
	}
	_, err = svc.Get(ctx, student.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestConcurrentConfirmOnlyOneWins(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	lesson, err := svc.Propose(ctx, tutor.ID, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	const attempts = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Confirm(ctx, student.ID, lesson.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) && !apperrors.HasCode(err, apperrors.CodeConflict) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful confirm, got %d", wins)
	}
}

func TestLessonListing(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	outsider := repotest.NewUser(t, e.users, "outsider", "UTC")

	base := testNow.Add(24 * time.Hour)
	second, _ := svc.Propose(ctx, student.ID, base.Add(48*time.Hour), base.Add(49*time.Hour))
	first, _ := svc.Propose(ctx, tutor.ID, base, base.Add(time.Hour))
	if _, err := svc.Propose(ctx, outsider.ID, base, base.Add(time.Hour)); err != nil {
		t.Fatalf("outsider propose: %v", err)
	}

	lessons, err := svc.List(ctx, tutor.ID, nil, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != first.ID || lessons[1].ID != second.ID {
		t.Fatalf("expected own and partner lessons by start, got %d", len(lessons))
	}

	to := base.Add(24 * time.Hour)
	lessons, err = svc.List(ctx, student.ID, &base, &to)
	if err != nil || len(lessons) != 1 || lessons[0].ID != first.ID {
		t.Fatalf("ranged list: %v %v", lessons, err)
	}
	_, err = svc.List(ctx, student.ID, &to, &base)
	expectCode(t, err, apperrors.CodeValidation)

	if _, err := svc.Get(ctx, student.ID, first.ID); err != nil {
		t.Fatalf("partner's proposal should be visible: %v", err)
	}
	_, err = svc.Get(ctx, outsider.ID, first.ID)
	expectCode(t, err, apperrors.CodeForbidden)
}

func TestProposeFromWallClock(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	_, student := e.pair(t)

	date, _ := timezone.ParseDate("2025-12-30")
	start, end, err := svc.LocalRange(ctx, student.ID, date, timezone.Clock{Hour: 21}, timezone.Clock{Hour: 22})
	if err != nil {
		t.Fatalf("local range: %v", err)
	}
	if !start.Equal(time.Date(2025, 12, 30, 13, 0, 0, 0, time.UTC)) || end.Sub(start) != time.Hour {
		t.Fatalf("Manila 21:00 should be 13:00Z, got %s", start)
	}
}

func TestProposeFromWallClockRejectsEmptyRange(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	_, student := e.pair(t)

	date, _ := timezone.ParseDate("2026-03-02")
	_, _, err := svc.LocalRange(context.Background(), student.ID, date, timezone.Clock{Hour: 10}, timezone.Clock{Hour: 10})
	expectCode(t, err, apperrors.CodeValidation)
}

func TestTardinessAlert(t *testing.T) {
	e := newEnv(t)
	svc := NewLessonService(e.deps)
	ctx := context.Background()
	tutor, student := e.pair(t)
	outsider := repotest.NewUser(t, e.users, "outsider", "UTC")

	lesson, _ := svc.Propose(ctx, tutor.ID, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	err := svc.SendTardinessAlert(ctx, tutor.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)

	if _, err := svc.Confirm(ctx, student.ID, lesson.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err = svc.SendTardinessAlert(ctx, tutor.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeInvalidTransition)

	e.now = testNow.Add(90 * time.Minute)
	err = svc.SendTardinessAlert(ctx, outsider.ID, lesson.ID)
	expectCode(t, err, apperrors.CodeForbidden)
	if err := svc.SendTardinessAlert(ctx, tutor.ID, lesson.ID); err != nil {
		t.Fatalf("alert: %v", err)
	}
	last := e.events.all[len(e.events.all)-1]
	payload := last.Payload.(events.TardinessPayload)
	if last.Type != events.EventTardinessAlert || payload.SenderName != "tutor" || last.Actor.UserID != tutor.ID {
		t.Fatalf("unexpected alert event %+v", last)
	}

	// Without a display name the sender is shown by email.
	unnamed, _ := e.users.GetByID(ctx, tutor.ID)
	unnamed.Name = ""
	if err := e.users.Update(ctx, unnamed); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.SendTardinessAlert(ctx, tutor.ID, lesson.ID); err != nil {
		t.Fatalf("alert: %v", err)
	}
	last = e.events.all[len(e.events.all)-1]
	if got := last.Payload.(events.TardinessPayload).SenderName; got != "tutor@example.com" {
		t.Fatalf("expected email fallback, got %q", got)
	}

	e.now = testNow.Add(3 * time.Hour)
	stored, _ := svc.Get(ctx, tutor.ID, lesson.ID)
	if !svc.Completed(stored) {
		t.Fatal("confirmed lesson in the past should be completed")
	}
}
