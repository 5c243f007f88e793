package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// RetryPolicy bounds retries of idempotent reads.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used by the wiring in cmd/.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// ReadWithRetry runs op with exponential backoff. Only transient failures are
// retried; missing rows, conflicts, domain errors and caller cancellation
// return immediately.
func ReadWithRetry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	tries := policy.MaxTries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

func transient(err error) bool {
	var domainErr *apperrors.DomainError
	switch {
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, context.Canceled),
		errors.As(err, &domainErr):
		return false
	}
	return true
}

// WithUserReadRetry retries the read methods of users. Writes pass through
// untouched.
func WithUserReadRetry(next UserRepository, policy RetryPolicy) UserRepository {
	return &retryingUsers{UserRepository: next, policy: policy}
}

type retryingUsers struct {
	UserRepository
	policy RetryPolicy
}

func (r *retryingUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) (*domain.User, error) {
		return r.UserRepository.GetByID(ctx, id)
	})
}

func (r *retryingUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) (*domain.User, error) {
		return r.UserRepository.GetByEmail(ctx, email)
	})
}

// WithLessonReadRetry retries GetByID and List.
func WithLessonReadRetry(next LessonRepository, policy RetryPolicy) LessonRepository {
	return &retryingLessons{LessonRepository: next, policy: policy}
}

type retryingLessons struct {
	LessonRepository
	policy RetryPolicy
}

func (r *retryingLessons) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) (*domain.Lesson, error) {
		return r.LessonRepository.GetByID(ctx, id)
	})
}

func (r *retryingLessons) List(ctx context.Context, filter LessonFilter) ([]*domain.Lesson, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) ([]*domain.Lesson, error) {
		return r.LessonRepository.List(ctx, filter)
	})
}

// WithUnavailabilityReadRetry retries GetByID and ListByUser.
func WithUnavailabilityReadRetry(next UnavailabilityRepository, policy RetryPolicy) UnavailabilityRepository {
	return &retryingRules{UnavailabilityRepository: next, policy: policy}
}

type retryingRules struct {
	UnavailabilityRepository
	policy RetryPolicy
}

func (r *retryingRules) GetByID(ctx context.Context, id string) (*domain.UnavailabilityRule, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) (*domain.UnavailabilityRule, error) {
		return r.UnavailabilityRepository.GetByID(ctx, id)
	})
}

func (r *retryingRules) ListByUser(ctx context.Context, userID string) ([]*domain.UnavailabilityRule, error) {
	return ReadWithRetry(ctx, r.policy, func(ctx context.Context) ([]*domain.UnavailabilityRule, error) {
		return r.UnavailabilityRepository.ListByUser(ctx, userID)
	})
}
