package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// ProfilePatch updates the caller's own profile. An empty NotificationHandle
// unregisters the device.
type ProfilePatch struct {
	Name               *string
	Timezone           *string
	NotificationHandle *string
}

// UserService manages profiles and pairing.
type UserService struct {
	base
}

// NewUserService builds the service.
func NewUserService(deps Dependencies) *UserService {
	return &UserService{base: newBase(deps)}
}

// Get returns the caller or their partner.
func (s *UserService) Get(ctx context.Context, actorID, userID string) (*domain.User, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return actor, nil
	}
	if !actor.IsPartnerOf(userID) {
		return nil, apperrors.NewForbidden("only your partner's profile is visible")
	}
	return s.loadUser(ctx, userID)
}

// UpdateProfile changes name, zone or delivery handle. Changing the zone
// never rewrites stored instants.
func (s *UserService) UpdateProfile(ctx context.Context, actorID string, patch ProfilePatch) (*domain.User, error) {
	user, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if patch.Name == nil && patch.Timezone == nil && patch.NotificationHandle == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		user.Name = name
	}
	if patch.Timezone != nil {
		if !timezone.ValidZone(*patch.Timezone) {
			return nil, apperrors.NewValidationError("unknown timezone", map[string]any{"timezone": *patch.Timezone})
		}
		user.Timezone = *patch.Timezone
	}
	if patch.NotificationHandle != nil {
		handle := strings.TrimSpace(*patch.NotificationHandle)
		if handle == "" {
			user.NotificationHandle = nil
		} else {
			user.NotificationHandle = &handle
		}
	}
	user.UpdatedAt = s.clock()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// Pair links the caller and partnerID. Both must currently be unpaired.
func (s *UserService) Pair(ctx context.Context, actorID, partnerID string) (*domain.User, error) {
	if actorID == partnerID {
		return nil, apperrors.NewValidationError("cannot pair with yourself", nil)
	}
	if _, err := s.loadUser(ctx, partnerID); err != nil {
		return nil, err
	}
	if err := s.users.Pair(ctx, actorID, partnerID); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.NewValidationError("one of the users is already paired; unpair first", map[string]any{
				"partner_id": partnerID,
			})
		}
		return nil, storeError(err, "user")
	}
	return s.loadUser(ctx, actorID)
}

// Unpair dissolves the caller's pairing on both sides.
func (s *UserService) Unpair(ctx context.Context, actorID string) (*domain.User, error) {
	user, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !user.HasPartner() {
		return nil, apperrors.NewValidationError("not paired", nil)
	}
	if err := s.users.Unpair(ctx, actorID); err != nil {
		return nil, storeError(err, "user")
	}
	return s.loadUser(ctx, actorID)
}
