package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/api/dto"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// ProfileHandler serves the caller's profile and pairing.
type ProfileHandler struct {
	users *service.UserService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(users *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Me handles GET /me.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actorID, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// GetUser handles GET /users/:id for the caller or their partner.
func (h *ProfileHandler) GetUser(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateMe handles PATCH /me.
func (h *ProfileHandler) UpdateMe(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	user, err := h.users.UpdateProfile(c.UserContext(), actorID, service.ProfilePatch{
		Name:               req.Name,
		Timezone:           req.Timezone,
		NotificationHandle: req.NotificationHandle,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Pair handles POST /me/partner.
func (h *ProfileHandler) Pair(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.PairRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if req.PartnerID == "" {
		return apperrors.NewValidationError("partner_id required", nil)
	}
	user, err := h.users.Pair(c.UserContext(), actorID, req.PartnerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Unpair handles DELETE /me/partner.
func (h *ProfileHandler) Unpair(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Unpair(c.UserContext(), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}
