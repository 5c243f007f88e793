package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

var now = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func pending(t *testing.T) *domain.Lesson {
	t.Helper()
	l, err := Propose("alice", now.Add(time.Hour), now.Add(2*time.Hour), now)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	l.ID = "lesson-1"
	return l
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.LessonStatus
		want     bool
	}{
		{domain.LessonStatusPending, domain.LessonStatusConfirmed, true},
		{domain.LessonStatusPending, domain.LessonStatusRejected, true},
		{domain.LessonStatusPending, domain.LessonStatusCancelled, false},
		{domain.LessonStatusConfirmed, domain.LessonStatusCancelled, true},
		{domain.LessonStatusConfirmed, domain.LessonStatusPending, false},
		{domain.LessonStatusCancelled, domain.LessonStatusPending, false},
		{domain.LessonStatusRejected, domain.LessonStatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestPropose(t *testing.T) {
	l := pending(t)
	if l.Status != domain.LessonStatusPending || l.ProposedBy != "alice" {
		t.Fatalf("unexpected lesson %+v", l)
	}
	if err := CheckInvariants(l); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	_, err := Propose("alice", now, now, now)
	expectCode(t, err, apperrors.CodeValidation)
	_, err = Propose("alice", now, now.Add(-time.Minute), now)
	expectCode(t, err, apperrors.CodeValidation)
}

func TestLessonScenario(t *testing.T) {
	l := pending(t)

	expectCode(t, Confirm(l, "alice", now), apperrors.CodeInvalidTransition)
	if l.Status != domain.LessonStatusPending {
		t.Fatal("failed confirm must not change status")
	}

	if err := Confirm(l, "bob", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if l.Status != domain.LessonStatusConfirmed || l.ConfirmedBy == nil || *l.ConfirmedBy != "bob" {
		t.Fatalf("unexpected lesson after confirm %+v", l)
	}
	if err := CheckInvariants(l); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	later := now.Add(3 * time.Hour)
	expectCode(t, ApplyUpdate(l, "alice", domain.LessonPatch{End: &later}, now), apperrors.CodeInvalidTransition)
	expectCode(t, CheckDelete(l, "alice"), apperrors.CodeInvalidTransition)
	expectCode(t, Confirm(l, "bob", now), apperrors.CodeInvalidTransition)

	if err := Cancel(l, "bob", "sick", now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if l.Status != domain.LessonStatusCancelled || *l.CancellationReason != "sick" || *l.CancelledBy != "bob" {
		t.Fatalf("unexpected lesson after cancel %+v", l)
	}
	if err := CheckInvariants(l); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	expectCode(t, Cancel(l, "alice", "again", now), apperrors.CodeInvalidTransition)
}

func TestCancelGuards(t *testing.T) {
	l := pending(t)
	expectCode(t, Cancel(l, "alice", "sick", now), apperrors.CodeInvalidTransition)

	if err := Confirm(l, "bob", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	expectCode(t, Cancel(l, "mallory", "sick", now), apperrors.CodeForbidden)
	expectCode(t, Cancel(l, "alice", "   ", now), apperrors.CodeValidation)
	if l.Status != domain.LessonStatusConfirmed {
		t.Fatal("failed cancel must leave lesson confirmed")
	}
	if err := Cancel(l, "alice", "  travel  ", now); err != nil {
		t.Fatalf("cancel by proposer: %v", err)
	}
	if *l.CancellationReason != "travel" {
		t.Fatalf("reason should be trimmed, got %q", *l.CancellationReason)
	}
	if l.ConfirmedBy != nil || l.IsParticipant("bob") || *l.CancelledBy != "alice" {
		t.Fatalf("cancel must drop the confirmer, got %+v", l)
	}
	if err := CheckInvariants(l); err != nil {
		t.Fatalf("invariants after cancel: %v", err)
	}
}

func TestReject(t *testing.T) {
	l := pending(t)
	expectCode(t, Reject(l, "alice", now), apperrors.CodeInvalidTransition)
	if err := Reject(l, "bob", now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if l.Status != domain.LessonStatusRejected || l.ConfirmedBy != nil {
		t.Fatalf("unexpected lesson after reject %+v", l)
	}
	expectCode(t, Confirm(l, "bob", now), apperrors.CodeInvalidTransition)
	expectCode(t, Reject(l, "bob", now), apperrors.CodeInvalidTransition)
}

func TestApplyUpdate(t *testing.T) {
	l := pending(t)
	newStart := now.Add(30 * time.Minute)

	expectCode(t, ApplyUpdate(l, "bob", domain.LessonPatch{Start: &newStart}, now), apperrors.CodeForbidden)
	expectCode(t, ApplyUpdate(l, "alice", domain.LessonPatch{}, now), apperrors.CodeValidation)

	tooLate := l.End.Add(time.Minute)
	expectCode(t, ApplyUpdate(l, "alice", domain.LessonPatch{Start: &tooLate}, now), apperrors.CodeValidation)

	edited := now.Add(5 * time.Minute)
	if err := ApplyUpdate(l, "alice", domain.LessonPatch{Start: &newStart}, edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !l.Start.Equal(newStart) || !l.UpdatedAt.Equal(edited) {
		t.Fatalf("unexpected lesson after update %+v", l)
	}
}

func TestCheckDelete(t *testing.T) {
	l := pending(t)
	expectCode(t, CheckDelete(l, "bob"), apperrors.CodeForbidden)
	if err := CheckDelete(l, "alice"); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
}

func TestCheckInvariants(t *testing.T) {
	reason := "x"
	tests := []struct {
		name   string
		mutate func(*domain.Lesson)
	}{
		{"unknown status", func(l *domain.Lesson) { l.Status = "done" }},
		{"inverted range", func(l *domain.Lesson) { l.End = l.Start }},
		{"reason while pending", func(l *domain.Lesson) { l.CancellationReason = &reason }},
		{"confirmedBy while pending", func(l *domain.Lesson) { l.ConfirmedBy = &reason }},
		{"cancelled without canceller", func(l *domain.Lesson) {
			l.Status = domain.LessonStatusCancelled
			l.CancellationReason = &reason
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := pending(t)
			tt.mutate(l)
			if err := CheckInvariants(l); !errors.Is(err, ErrInvariant) {
				t.Fatalf("expected ErrInvariant, got %v", err)
			}
		})
	}
}
