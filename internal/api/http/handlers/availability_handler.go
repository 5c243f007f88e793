package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/api/dto"
	"github.com/spec-kit/lesson-scheduler/internal/auth"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// AvailabilityHandler serves unavailability rules and the day view.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Create handles POST /unavailability.
func (h *AvailabilityHandler) Create(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	in, err := ruleInput(req)
	if err != nil {
		return err
	}
	rule, err := h.availability.Create(c.UserContext(), actorID, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Update handles PATCH /unavailability/:id.
func (h *AvailabilityHandler) Update(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.RulePatchRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	patch, err := rulePatch(req)
	if err != nil {
		return err
	}
	rule, err := h.availability.Update(c.UserContext(), actorID, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Delete handles DELETE /unavailability/:id.
func (h *AvailabilityHandler) Delete(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	if err := h.availability.Delete(c.UserContext(), actorID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Get handles GET /unavailability/:id.
func (h *AvailabilityHandler) Get(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	rule, err := h.availability.Get(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// List handles GET /unavailability?user_id=.
func (h *AvailabilityHandler) List(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	rules, err := h.availability.List(c.UserContext(), actorID, c.Query("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rulesResponse(rules)})
}

// Day handles GET /calendar/day?date=&user_id=. Blocks are shown in the
// caller's profile zone.
func (h *AvailabilityHandler) Day(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	day, err := parseDate("date", c.Query("date"))
	if err != nil {
		return err
	}
	ownerID := c.Query("user_id", principal.UserID)
	blocks, err := h.availability.Day(c.UserContext(), principal.UserID, ownerID, day)
	if err != nil {
		return err
	}
	loc, err := timezone.LoadZone(principal.User.Timezone)
	if err != nil {
		return apperrors.NewValidationError("profile timezone is not usable", nil)
	}
	resp := dto.DayResponse{
		Date:     day.String(),
		UserID:   ownerID,
		Timezone: principal.User.Timezone,
		Blocks:   make([]dto.BlockResponse, 0, len(blocks)),
	}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, blockResponse(b, loc))
	}
	return c.JSON(fiber.Map{"data": resp})
}

func ruleInput(req dto.RuleRequest) (service.RuleInput, error) {
	in := service.RuleInput{IsAllDay: req.IsAllDay, Recurrence: domain.None{}}
	var err error
	if in.Date, err = parseDate("date", req.Date); err != nil {
		return in, err
	}
	if !req.IsAllDay {
		if in.StartTime, err = parseClock("start_time", req.StartTime); err != nil {
			return in, err
		}
		if in.EndTime, err = parseClock("end_time", req.EndTime); err != nil {
			return in, err
		}
	}
	rec, err := parseRecurrence(req.Recurrence)
	if err != nil {
		return in, err
	}
	if rec != nil {
		in.Recurrence = rec
	}
	return in, nil
}

func rulePatch(req dto.RulePatchRequest) (service.RulePatch, error) {
	patch := service.RulePatch{IsAllDay: req.IsAllDay}
	if req.Date != nil {
		d, err := parseDate("date", *req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if req.StartTime != nil {
		clock, err := parseClock("start_time", *req.StartTime)
		if err != nil {
			return patch, err
		}
		patch.StartTime = &clock
	}
	if req.EndTime != nil {
		clock, err := parseClock("end_time", *req.EndTime)
		if err != nil {
			return patch, err
		}
		patch.EndTime = &clock
	}
	rec, err := parseRecurrence(req.Recurrence)
	if err != nil {
		return patch, err
	}
	patch.Recurrence = rec
	return patch, nil
}
