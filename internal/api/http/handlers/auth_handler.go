package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/api/dto"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	session, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:               req.Name,
		Email:              req.Email,
		Password:           req.Password,
		Timezone:           req.Timezone,
		NotificationHandle: req.NotificationHandle,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(sessionResponse(session))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func sessionResponse(s *service.Session) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"user": userResponse(s.User),
			"auth": dto.AuthResponse{Token: s.Token, ExpiresAt: s.ExpiresAt},
		},
	}
}
