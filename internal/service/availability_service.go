package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/lesson-scheduler/internal/availability"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// RuleInput is a rule as its owner enters it: wall-clock values interpreted
// in the owner's profile zone. Clocks are ignored for all-day rules; an end
// clock at or before the start clock crosses midnight.
type RuleInput struct {
	Date       timezone.Date
	StartTime  timezone.Clock
	EndTime    timezone.Clock
	IsAllDay   bool
	Recurrence domain.Recurrence
}

// RulePatch changes some fields of a rule. Unset fields keep their current
// wall-clock value as seen in the rule's authoring zone.
type RulePatch struct {
	Date       *timezone.Date
	StartTime  *timezone.Clock
	EndTime    *timezone.Clock
	IsAllDay   *bool
	Recurrence domain.Recurrence
}

func (p RulePatch) empty() bool {
	return p.Date == nil && p.StartTime == nil && p.EndTime == nil && p.IsAllDay == nil && p.Recurrence == nil
}

// AvailabilityService manages unavailability rules and the merged day view.
type AvailabilityService struct {
	base
	rules repository.UnavailabilityRepository
}

// NewAvailabilityService builds the service.
func NewAvailabilityService(deps Dependencies) *AvailabilityService {
	return &AvailabilityService{base: newBase(deps), rules: deps.Rules}
}

// Create stores a rule authored by actorID in their profile zone.
func (s *AvailabilityService) Create(ctx context.Context, actorID string, in RuleInput) (*domain.UnavailabilityRule, error) {
	owner, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	loc, err := userZone(owner)
	if err != nil {
		return nil, err
	}
	rec, err := checkRecurrence(in.Recurrence)
	if err != nil {
		return nil, err
	}
	start, end, err := ruleRange(in, loc)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	rule := &domain.UnavailabilityRule{
		ID:         uuid.NewString(),
		UserID:     owner.ID,
		Start:      start,
		End:        end,
		IsAllDay:   in.IsAllDay,
		Recurrence: rec,
		Timezone:   owner.Timezone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, storeError(err, "unavailability rule")
	}
	s.publish(ctx, events.EventUnavailabilityCreated, rule.ID, actorID, events.UnavailabilityPayload{Rule: *rule})
	return rule, nil
}

// Update re-authors a rule in the owner's current profile zone.
func (s *AvailabilityService) Update(ctx context.Context, actorID, ruleID string, patch RulePatch) (*domain.UnavailabilityRule, error) {
	if patch.empty() {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	rule, owner, err := s.ownedRule(ctx, actorID, ruleID)
	if err != nil {
		return nil, err
	}
	authored, err := timezone.LoadZone(rule.Timezone)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	loc, err := userZone(owner)
	if err != nil {
		return nil, err
	}

	in := RuleInput{IsAllDay: rule.IsAllDay, Recurrence: rule.Recurrence}
	in.Date, in.StartTime, _ = timezone.ToZonedWallClock(rule.Start, authored)
	_, in.EndTime, _ = timezone.ToZonedWallClock(rule.End, authored)
	if patch.Date != nil {
		in.Date = *patch.Date
	}
	if patch.StartTime != nil {
		in.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		in.EndTime = *patch.EndTime
	}
	if patch.IsAllDay != nil {
		in.IsAllDay = *patch.IsAllDay
	}
	if patch.Recurrence != nil {
		in.Recurrence = patch.Recurrence
	}
	if in.Recurrence, err = checkRecurrence(in.Recurrence); err != nil {
		return nil, err
	}
	start, end, err := ruleRange(in, loc)
	if err != nil {
		return nil, err
	}

	rule.Start, rule.End = start, end
	rule.IsAllDay = in.IsAllDay
	rule.Recurrence = in.Recurrence
	rule.Timezone = owner.Timezone
	rule.UpdatedAt = s.clock()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, storeError(err, "unavailability rule")
	}
	s.publish(ctx, events.EventUnavailabilityUpdated, rule.ID, actorID, events.UnavailabilityPayload{Rule: *rule})
	return rule, nil
}

// Delete removes a rule. Owner only.
func (s *AvailabilityService) Delete(ctx context.Context, actorID, ruleID string) error {
	rule, _, err := s.ownedRule(ctx, actorID, ruleID)
	if err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, ruleID); err != nil {
		return storeError(err, "unavailability rule")
	}
	s.publish(ctx, events.EventUnavailabilityDeleted, rule.ID, actorID, events.UnavailabilityPayload{Rule: *rule})
	return nil
}

// Get returns one rule visible to actorID.
func (s *AvailabilityService) Get(ctx context.Context, actorID, ruleID string) (*domain.UnavailabilityRule, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, storeError(err, "unavailability rule")
	}
	if !canView(actor, rule.UserID) {
		return nil, apperrors.NewForbidden("rule belongs to another pairing")
	}
	return rule, nil
}

// List returns the rules of ownerID, which must be the caller or their
// partner. An empty ownerID means the caller.
func (s *AvailabilityService) List(ctx context.Context, actorID, ownerID string) ([]*domain.UnavailabilityRule, error) {
	if _, err := s.visibleOwner(ctx, actorID, &ownerID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "unavailability rule")
	}
	return rules, nil
}

// Day returns ownerID's merged unavailability on day, with day and every
// instant interpreted in the caller's profile zone.
func (s *AvailabilityService) Day(ctx context.Context, actorID, ownerID string, day timezone.Date) ([]domain.Block, error) {
	actor, err := s.visibleOwner(ctx, actorID, &ownerID)
	if err != nil {
		return nil, err
	}
	viewer, err := userZone(actor)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "unavailability rule")
	}
	blocks, err := availability.DayView(rules, day, viewer)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return blocks, nil
}

func (s *AvailabilityService) visibleOwner(ctx context.Context, actorID string, ownerID *string) (*domain.User, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if *ownerID == "" {
		*ownerID = actor.ID
	}
	if !canView(actor, *ownerID) {
		return nil, apperrors.NewForbidden("only your own or your partner's availability is visible")
	}
	return actor, nil
}

func (s *AvailabilityService) ownedRule(ctx context.Context, actorID, ruleID string) (*domain.UnavailabilityRule, *domain.User, error) {
	owner, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, nil, storeError(err, "unavailability rule")
	}
	if rule.UserID != actorID {
		return nil, nil, apperrors.NewForbidden("only the owner can change a rule")
	}
	return rule, owner, nil
}

func checkRecurrence(rec domain.Recurrence) (domain.Recurrence, error) {
	if rec == nil {
		return domain.None{}, nil
	}
	if _, ok := rec.(domain.Weekly); ok {
		_, days := domain.EncodeRecurrence(rec)
		weekly, err := domain.NewWeekly(days)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"recurrence": "weekly"})
		}
		return weekly, nil
	}
	return rec, nil
}

func ruleRange(in RuleInput, loc *time.Location) (time.Time, time.Time, error) {
	if in.Date.IsZero() {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("date is required", nil)
	}
	if in.IsAllDay {
		start, end := timezone.DayWindow(in.Date, loc)
		return start, end, nil
	}
	start, end, err := timezone.WallClockRange(in.Date, in.StartTime, in.EndTime, loc)
	if errors.Is(err, timezone.ErrInvalidClock) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("invalid time of day", nil)
	}
	if errors.Is(err, timezone.ErrEmptyRange) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("rule must end after it starts", nil)
	}
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewInternalError(err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("rule must end after it starts", nil)
	}
	return start, end, nil
}
