package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/lifecycle"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// LessonService runs the lesson lifecycle. Every transition is applied inside
// LessonRepository.Mutate so the guard and the write are atomic.
type LessonService struct {
	base
	lessons repository.LessonRepository
}

// NewLessonService builds the service.
func NewLessonService(deps Dependencies) *LessonService {
	return &LessonService{base: newBase(deps), lessons: deps.Lessons}
}

// LocalRange converts wall-clock input in actorID's profile zone to instants.
func (s *LessonService) LocalRange(ctx context.Context, actorID string, date timezone.Date, start, end timezone.Clock) (time.Time, time.Time, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, err := userZone(actor)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startAt, endAt, err := timezone.WallClockRange(date, start, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(err.Error(), nil)
	}
	return startAt, endAt, nil
}

// Propose creates a pending lesson. Overlapping lessons are allowed.
func (s *LessonService) Propose(ctx context.Context, actorID string, start, end time.Time) (*domain.Lesson, error) {
	if _, err := s.loadUser(ctx, actorID); err != nil {
		return nil, err
	}
	lesson, err := lifecycle.Propose(actorID, start, end, s.clock())
	if err != nil {
		return nil, err
	}
	lesson.ID = uuid.NewString()
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, storeError(err, "lesson")
	}
	s.publish(ctx, events.EventLessonProposed, lesson.ID, actorID, events.LessonPayload{Lesson: *lesson})
	return lesson, nil
}

// Confirm accepts a pending lesson. Only the proposer's partner may confirm.
func (s *LessonService) Confirm(ctx context.Context, actorID, lessonID string) (*domain.Lesson, error) {
	return s.decide(ctx, actorID, lessonID, events.EventLessonConfirmed, lifecycle.Confirm)
}

// Reject declines a pending lesson. Only the proposer's partner may reject.
func (s *LessonService) Reject(ctx context.Context, actorID, lessonID string) (*domain.Lesson, error) {
	return s.decide(ctx, actorID, lessonID, events.EventLessonRejected, lifecycle.Reject)
}

func (s *LessonService) decide(ctx context.Context, actorID, lessonID string, typ events.EventType, transition func(*domain.Lesson, string, time.Time) error) (*domain.Lesson, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	var previous domain.LessonStatus
	lesson, err := s.lessons.Mutate(ctx, lessonID, func(l *domain.Lesson) error {
		previous = l.Status
		if l.ProposedBy != actorID && !actor.IsPartnerOf(l.ProposedBy) {
			return apperrors.NewForbidden("only the proposer's partner can decide on a lesson")
		}
		if err := transition(l, actorID, now); err != nil {
			return err
		}
		return checkInvariants(l)
	})
	if err != nil {
		return nil, storeError(err, "lesson")
	}
	s.publish(ctx, typ, lesson.ID, actorID, events.LessonPayload{Lesson: *lesson, PreviousStatus: previous})
	return lesson, nil
}

// Cancel calls off a confirmed lesson with a mandatory reason.
func (s *LessonService) Cancel(ctx context.Context, actorID, lessonID, reason string) (*domain.Lesson, error) {
	now := s.clock()
	var previous domain.LessonStatus
	lesson, err := s.lessons.Mutate(ctx, lessonID, func(l *domain.Lesson) error {
		previous = l.Status
		if err := lifecycle.Cancel(l, actorID, reason, now); err != nil {
			return err
		}
		return checkInvariants(l)
	})
	if err != nil {
		return nil, storeError(err, "lesson")
	}
	s.publish(ctx, events.EventLessonCancelled, lesson.ID, actorID, events.LessonPayload{Lesson: *lesson, PreviousStatus: previous})
	return lesson, nil
}

// Update moves a lesson that has not been confirmed. Proposer only.
func (s *LessonService) Update(ctx context.Context, actorID, lessonID string, patch domain.LessonPatch) (*domain.Lesson, error) {
	now := s.clock()
	lesson, err := s.lessons.Mutate(ctx, lessonID, func(l *domain.Lesson) error {
		if err := lifecycle.ApplyUpdate(l, actorID, patch, now); err != nil {
			return err
		}
		return checkInvariants(l)
	})
	if err != nil {
		return nil, storeError(err, "lesson")
	}
	s.publish(ctx, events.EventLessonUpdated, lesson.ID, actorID, events.LessonPayload{Lesson: *lesson})
	return lesson, nil
}

// Delete removes a lesson that has not been confirmed. Proposer only.
func (s *LessonService) Delete(ctx context.Context, actorID, lessonID string) error {
	lesson, err := s.lessons.DeleteIf(ctx, lessonID, func(l *domain.Lesson) error {
		return lifecycle.CheckDelete(l, actorID)
	})
	if err != nil {
		return storeError(err, "lesson")
	}
	s.publish(ctx, events.EventLessonDeleted, lesson.ID, actorID, events.LessonPayload{Lesson: *lesson})
	return nil
}

// Get returns a lesson the caller takes part in or their partner proposed.
func (s *LessonService) Get(ctx context.Context, actorID, lessonID string) (*domain.Lesson, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, "lesson")
	}
	if !visibleLesson(actor, lesson) {
		return nil, apperrors.NewForbidden("lesson belongs to another pairing")
	}
	return lesson, nil
}

// List returns the caller's and their partner's lessons ordered by start.
// from and to bound the start instant as [from, to) when set.
func (s *LessonService) List(ctx context.Context, actorID string, from, to *time.Time) ([]*domain.Lesson, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperrors.NewValidationError("range end must be after its start", nil)
	}
	filter := repository.LessonFilter{UserIDs: []string{actor.ID}, From: from, To: to}
	if actor.HasPartner() {
		filter.UserIDs = append(filter.UserIDs, *actor.PartnerID)
	}
	lessons, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "lesson")
	}
	return lessons, nil
}

// SendTardinessAlert tells the sender's partner that the sender is waiting in
// a lesson that is under way.
func (s *LessonService) SendTardinessAlert(ctx context.Context, senderID, lessonID string) error {
	sender, err := s.loadUser(ctx, senderID)
	if err != nil {
		return err
	}
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return storeError(err, "lesson")
	}
	if !lesson.IsParticipant(senderID) {
		return apperrors.NewForbidden("only lesson participants can send a tardiness alert")
	}
	if lesson.Status != domain.LessonStatusConfirmed || !lesson.InProgress(s.clock()) {
		return apperrors.NewInvalidTransition("tardiness alerts are only possible during a confirmed lesson", map[string]any{
			"lesson_id": lesson.ID,
			"status":    lesson.Status,
		})
	}
	if !sender.HasPartner() {
		return apperrors.NewNotFound("partner", map[string]any{"user_id": senderID})
	}
	name := sender.Name
	if strings.TrimSpace(name) == "" {
		name = sender.Email
	}
	s.publish(ctx, events.EventTardinessAlert, lesson.ID, senderID, events.TardinessPayload{Lesson: *lesson, SenderName: name})
	return nil
}

// Completed reports the derived completed flag at the service clock.
func (s *LessonService) Completed(l *domain.Lesson) bool {
	return l.Completed(s.clock())
}

func visibleLesson(actor *domain.User, l *domain.Lesson) bool {
	if l.IsParticipant(actor.ID) || canView(actor, l.ProposedBy) {
		return true
	}
	return l.CancelledBy != nil && *l.CancelledBy == actor.ID
}

func checkInvariants(l *domain.Lesson) error {
	if err := lifecycle.CheckInvariants(l); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
