package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/api/dto"
	"github.com/spec-kit/lesson-scheduler/internal/auth"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

const localLayout = "2006-01-02 15:04"

func principalID(c *fiber.Ctx) (string, error) {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return "", err
	}
	return principal.UserID, nil
}

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}

func invalidField(field string, err error) error {
	return apperrors.NewValidationError("invalid "+field, map[string]any{field: err.Error()})
}

func parseDate(field, value string) (timezone.Date, error) {
	if value == "" {
		return timezone.Date{}, apperrors.NewValidationError(field+" required", map[string]any{field: "required"})
	}
	d, err := timezone.ParseDate(value)
	if err != nil {
		return timezone.Date{}, invalidField(field, err)
	}
	return d, nil
}

func parseClock(field, value string) (timezone.Clock, error) {
	if value == "" {
		return timezone.Clock{}, apperrors.NewValidationError(field+" required", map[string]any{field: "required"})
	}
	c, err := timezone.ParseClock(value)
	if err != nil {
		return timezone.Clock{}, invalidField(field, err)
	}
	return c, nil
}

func parseInstant(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, invalidField(field, err)
	}
	return &t, nil
}

func parseRecurrence(in *dto.Recurrence) (domain.Recurrence, error) {
	if in == nil {
		return nil, nil
	}
	rec, err := domain.ParseRecurrence(in.Type, in.DaysOfWeek)
	if err != nil {
		return nil, invalidField("recurrence", err)
	}
	return rec, nil
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Timezone:  u.Timezone,
		PartnerID: u.PartnerID,
		CanNotify: u.CanNotify(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func recurrenceResponse(r domain.Recurrence) dto.Recurrence {
	kind, days := domain.EncodeRecurrence(r)
	return dto.Recurrence{Type: kind, DaysOfWeek: days}
}

func ruleResponse(r *domain.UnavailabilityRule) dto.RuleResponse {
	resp := dto.RuleResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		Start:      r.Start,
		End:        r.End,
		IsAllDay:   r.IsAllDay,
		Recurrence: recurrenceResponse(r.Recurrence),
		Timezone:   r.Timezone,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if loc, err := timezone.LoadZone(r.Timezone); err == nil {
		d, start, _ := timezone.ToZonedWallClock(r.Start, loc)
		_, end, _ := timezone.ToZonedWallClock(r.End, loc)
		resp.Date = d.String()
		resp.StartTime = start.String()
		resp.EndTime = end.String()
	}
	return resp
}

func rulesResponse(rules []*domain.UnavailabilityRule) []dto.RuleResponse {
	out := make([]dto.RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleResponse(r))
	}
	return out
}

func blockResponse(b domain.Block, loc *time.Location) dto.BlockResponse {
	return dto.BlockResponse{
		Start:      b.Start,
		End:        b.End,
		IsAllDay:   b.IsAllDay,
		LocalStart: b.Start.In(loc).Format(localLayout),
		LocalEnd:   b.End.In(loc).Format(localLayout),
	}
}

func lessonResponse(l *domain.Lesson, completed bool) dto.LessonResponse {
	return dto.LessonResponse{
		ID:                 l.ID,
		ProposedBy:         l.ProposedBy,
		ConfirmedBy:        l.ConfirmedBy,
		CancelledBy:        l.CancelledBy,
		Start:              l.Start,
		End:                l.End,
		Status:             l.Status,
		CancellationReason: l.CancellationReason,
		Completed:          completed,
		Version:            l.Version,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}
