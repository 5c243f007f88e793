// Package memory provides mutex-guarded in-process repositories used in
// development and tests. Every read returns a copy.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu   sync.RWMutex
	byID map[string]*domain.User
}

// NewUserRepository returns an empty store.
func NewUserRepository() *Users {
	return &Users{byID: make(map[string]*domain.User)}
}

var _ repository.UserRepository = (*Users)(nil)

func (s *Users) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, apperrors.ErrConflict)
	}
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("user email %s: %w", user.Email, apperrors.ErrConflict)
		}
	}
	user.UpdatedAt = user.CreatedAt
	s.byID[user.ID] = cloneUser(user)
	return nil
}

func (s *Users) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, apperrors.ErrNotFound)
	}
	stored.Name = user.Name
	stored.Timezone = user.Timezone
	stored.NotificationHandle = cloneString(user.NotificationHandle)
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
	}
	return cloneUser(user), nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.byID {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, apperrors.ErrNotFound)
}

func (s *Users) Pair(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua, okA := s.byID[a]
	ub, okB := s.byID[b]
	if !okA || !okB {
		return fmt.Errorf("pair %s with %s: %w", a, b, apperrors.ErrNotFound)
	}
	if (ua.HasPartner() && *ua.PartnerID != b) || (ub.HasPartner() && *ub.PartnerID != a) {
		return fmt.Errorf("pair %s with %s: %w", a, b, apperrors.ErrConflict)
	}
	ua.PartnerID = &b
	ub.PartnerID = &a
	return nil
}

func (s *Users) Unpair(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byID {
		if user.ID == id || user.IsPartnerOf(id) {
			user.PartnerID = nil
		}
	}
	return nil
}

// Lessons is an in-memory repository.LessonRepository.
type Lessons struct {
	mu   sync.Mutex
	byID map[string]*domain.Lesson
}

// NewLessonRepository returns an empty store.
func NewLessonRepository() *Lessons {
	return &Lessons{byID: make(map[string]*domain.Lesson)}
}

var _ repository.LessonRepository = (*Lessons)(nil)

func (s *Lessons) Create(_ context.Context, lesson *domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[lesson.ID]; ok {
		return fmt.Errorf("lesson %s: %w", lesson.ID, apperrors.ErrConflict)
	}
	lesson.Version = 1
	lesson.UpdatedAt = lesson.CreatedAt
	s.byID[lesson.ID] = lesson.Clone()
	return nil
}

func (s *Lessons) GetByID(_ context.Context, id string) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lesson, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrNotFound)
	}
	return lesson.Clone(), nil
}

func (s *Lessons) List(_ context.Context, filter repository.LessonFilter) ([]*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Lesson
	for _, lesson := range s.byID {
		if filter.Matches(lesson) {
			out = append(out, lesson.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Lesson) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Mutate holds the store lock for the whole read-guard-write cycle.
func (s *Lessons) Mutate(_ context.Context, id string, guard repository.LessonGuard) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrNotFound)
	}
	working := stored.Clone()
	if err := guard(working); err != nil {
		return nil, err
	}
	working.Version = stored.Version + 1
	s.byID[id] = working
	return working.Clone(), nil
}

func (s *Lessons) DeleteIf(_ context.Context, id string, guard repository.LessonGuard) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrNotFound)
	}
	snapshot := stored.Clone()
	if err := guard(snapshot); err != nil {
		return nil, err
	}
	delete(s.byID, id)
	return snapshot, nil
}

// Rules is an in-memory repository.UnavailabilityRepository.
type Rules struct {
	mu   sync.RWMutex
	byID map[string]*domain.UnavailabilityRule
}

// NewUnavailabilityRepository returns an empty store.
func NewUnavailabilityRepository() *Rules {
	return &Rules{byID: make(map[string]*domain.UnavailabilityRule)}
}

var _ repository.UnavailabilityRepository = (*Rules)(nil)

func (s *Rules) Create(_ context.Context, rule *domain.UnavailabilityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rule.ID]; ok {
		return fmt.Errorf("unavailability rule %s: %w", rule.ID, apperrors.ErrConflict)
	}
	rule.Version = 1
	rule.UpdatedAt = rule.CreatedAt
	s.byID[rule.ID] = cloneRule(rule)
	return nil
}

func (s *Rules) Update(_ context.Context, rule *domain.UnavailabilityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[rule.ID]
	if !ok || stored.Version != rule.Version {
		return fmt.Errorf("unavailability rule %s: %w", rule.ID, apperrors.ErrConflict)
	}
	rule.Version++
	s.byID[rule.ID] = cloneRule(rule)
	return nil
}

func (s *Rules) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("unavailability rule %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}

func (s *Rules) GetByID(_ context.Context, id string) (*domain.UnavailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("unavailability rule %s: %w", id, apperrors.ErrNotFound)
	}
	return cloneRule(rule), nil
}

func (s *Rules) ListByUser(_ context.Context, userID string) ([]*domain.UnavailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.UnavailabilityRule
	for _, rule := range s.byID {
		if rule.UserID == userID {
			out = append(out, cloneRule(rule))
		}
	}
	slices.SortFunc(out, func(a, b *domain.UnavailabilityRule) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.PartnerID = cloneString(u.PartnerID)
	c.NotificationHandle = cloneString(u.NotificationHandle)
	return &c
}

func cloneRule(r *domain.UnavailabilityRule) *domain.UnavailabilityRule {
	c := *r
	if w, ok := r.Recurrence.(domain.Weekly); ok {
		c.Recurrence = domain.Weekly{Days: slices.Clone(w.Days)}
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
