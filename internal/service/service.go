// Package service holds the application operations behind the HTTP and CLI
// surfaces. The authenticated user ID is trusted as given.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// Dependencies are shared by every service.
type Dependencies struct {
	Users      repository.UserRepository
	Lessons    repository.LessonRepository
	Rules      repository.UnavailabilityRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type base struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func newBase(deps Dependencies) base {
	b := base{users: deps.Users, dispatcher: deps.Dispatcher, logger: deps.Logger, now: deps.Now}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.dispatcher == nil {
		b.dispatcher = events.NewInMemoryDispatcher(b.logger)
	}
	return b
}

func (b base) clock() time.Time {
	return b.now().UTC().Truncate(time.Microsecond)
}

func (b base) publish(ctx context.Context, typ events.EventType, subjectID, actorID string, payload any) {
	ev := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		SubjectID: subjectID,
		Actor:     events.Actor{UserID: actorID},
		Timestamp: b.clock(),
		Payload:   payload,
	}
	if err := b.dispatcher.Publish(ctx, ev); err != nil {
		b.logger.Warn("publish event", zap.String("event_type", string(typ)), zap.Error(err))
	}
}

func (b base) loadUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := b.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// canView reports whether actor may read data owned by ownerID: their own or
// their partner's.
func canView(actor *domain.User, ownerID string) bool {
	return actor.ID == ownerID || actor.IsPartnerOf(ownerID)
}

func userZone(u *domain.User) (*time.Location, error) {
	loc, err := timezone.LoadZone(u.Timezone)
	if err != nil {
		return nil, apperrors.NewValidationError("profile timezone is not usable", map[string]any{
			"user_id":  u.ID,
			"timezone": u.Timezone,
		})
	}
	return loc, nil
}

// storeError turns a repository failure into a DomainError. Guard errors are
// already DomainErrors and pass through.
func storeError(err error, resource string) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, apperrors.ErrConflict):
		return apperrors.NewConflict(resource+" was modified concurrently, retry with fresh state", nil)
	}
	return apperrors.NewDependencyFailure(err)
}
