// Package lifecycle holds the lesson state machine and its mutation guards.
// Guards run against a freshly read lesson inside the store's per-document
// transaction and mutate it in place when they succeed.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// ErrInvariant reports a lesson whose fields disagree with its status.
var ErrInvariant = errors.New("lesson invariant violated")

var allowedTransitions = map[domain.LessonStatus][]domain.LessonStatus{
	domain.LessonStatusPending:   {domain.LessonStatusConfirmed, domain.LessonStatusRejected},
	domain.LessonStatusConfirmed: {domain.LessonStatusCancelled},
	domain.LessonStatusCancelled: {},
	domain.LessonStatusRejected:  {},
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next domain.LessonStatus) bool {
	return slices.Contains(allowedTransitions[current], next)
}

func invalidTransition(l *domain.Lesson, next domain.LessonStatus, reason string) error {
	return apperrors.NewInvalidTransition(reason, map[string]any{
		"lesson_id": l.ID,
		"status":    l.Status,
		"target":    next,
	})
}

func checkTransition(l *domain.Lesson, next domain.LessonStatus) error {
	if !CanTransition(l.Status, next) {
		return invalidTransition(l, next, fmt.Sprintf("cannot move lesson from %s to %s", l.Status, next))
	}
	return nil
}

// Propose builds a new pending lesson. Overlap with other lessons is allowed.
func Propose(proposerID string, start, end, now time.Time) (*domain.Lesson, error) {
	if proposerID == "" {
		return nil, apperrors.NewValidationError("proposer is required", nil)
	}
	if !end.After(start) {
		return nil, apperrors.NewValidationError("lesson must end after it starts", map[string]any{
			"start": start,
			"end":   end,
		})
	}
	return &domain.Lesson{
		ProposedBy: proposerID,
		Start:      start.UTC(),
		End:        end.UTC(),
		Status:     domain.LessonStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Confirm accepts a pending proposal on behalf of the proposer's counterpart.
func Confirm(l *domain.Lesson, actorID string, now time.Time) error {
	if err := checkTransition(l, domain.LessonStatusConfirmed); err != nil {
		return err
	}
	if actorID == l.ProposedBy {
		return invalidTransition(l, domain.LessonStatusConfirmed, "a lesson cannot be confirmed by its proposer")
	}
	l.Status = domain.LessonStatusConfirmed
	l.ConfirmedBy = &actorID
	l.UpdatedAt = now
	return nil
}

// Reject declines a pending proposal. Like Confirm, only the counterpart may
// decide.
func Reject(l *domain.Lesson, actorID string, now time.Time) error {
	if err := checkTransition(l, domain.LessonStatusRejected); err != nil {
		return err
	}
	if actorID == l.ProposedBy {
		return invalidTransition(l, domain.LessonStatusRejected, "a lesson cannot be rejected by its proposer")
	}
	l.Status = domain.LessonStatusRejected
	l.UpdatedAt = now
	return nil
}

// Cancel calls off a confirmed lesson. Either participant may cancel and a
// reason is mandatory. ConfirmedBy is cleared, since it is only set while the
// lesson is confirmed; the canceller is kept in CancelledBy.
func Cancel(l *domain.Lesson, actorID, reason string, now time.Time) error {
	if !l.IsParticipant(actorID) {
		return apperrors.NewForbidden("only lesson participants can cancel")
	}
	if err := checkTransition(l, domain.LessonStatusCancelled); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.NewValidationError("cancellation reason is required", nil)
	}
	l.Status = domain.LessonStatusCancelled
	l.CancelledBy = &actorID
	l.CancellationReason = &reason
	l.ConfirmedBy = nil
	l.UpdatedAt = now
	return nil
}

// ApplyUpdate edits the time range of a lesson that is not confirmed.
func ApplyUpdate(l *domain.Lesson, actorID string, patch domain.LessonPatch, now time.Time) error {
	if actorID != l.ProposedBy {
		return apperrors.NewForbidden("only the proposer can edit a lesson")
	}
	if l.Status == domain.LessonStatusConfirmed {
		return invalidTransition(l, l.Status, "a confirmed lesson can only be cancelled")
	}
	if patch.Empty() {
		return apperrors.NewValidationError("nothing to update", nil)
	}
	start, end := l.Start, l.End
	if patch.Start != nil {
		start = patch.Start.UTC()
	}
	if patch.End != nil {
		end = patch.End.UTC()
	}
	if !end.After(start) {
		return apperrors.NewValidationError("lesson must end after it starts", map[string]any{
			"start": start,
			"end":   end,
		})
	}
	l.Start, l.End = start, end
	l.UpdatedAt = now
	return nil
}

// CheckDelete guards removal: proposer only, never once confirmed.
func CheckDelete(l *domain.Lesson, actorID string) error {
	if actorID != l.ProposedBy {
		return apperrors.NewForbidden("only the proposer can delete a lesson")
	}
	if l.Status == domain.LessonStatusConfirmed {
		return invalidTransition(l, l.Status, "a confirmed lesson can only be cancelled")
	}
	return nil
}

// CheckInvariants verifies that role fields agree with the status.
func CheckInvariants(l *domain.Lesson) error {
	if !l.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, l.Status)
	}
	if !l.End.After(l.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvariant)
	}
	cancelled := l.Status == domain.LessonStatusCancelled
	if cancelled != (l.CancelledBy != nil) || cancelled != (l.CancellationReason != nil) {
		return fmt.Errorf("%w: cancellation fields on %s lesson", ErrInvariant, l.Status)
	}
	if (l.Status == domain.LessonStatusConfirmed) != (l.ConfirmedBy != nil) {
		return fmt.Errorf("%w: confirmedBy on %s lesson", ErrInvariant, l.Status)
	}
	return nil
}
