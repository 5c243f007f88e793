package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/api/http/handlers"
	"github.com/spec-kit/lesson-scheduler/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profile        *handlers.ProfileHandler
	Availability   *handlers.AvailabilityHandler
	Calendar       *handlers.CalendarHandler
	Lessons        *handlers.LessonHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	protected.Get("/me", cfg.Profile.Me)
	protected.Patch("/me", cfg.Profile.UpdateMe)
	protected.Post("/me/partner", cfg.Profile.Pair)
	protected.Delete("/me/partner", cfg.Profile.Unpair)
	protected.Get("/users/:id", cfg.Profile.GetUser)

	protected.Post("/unavailability", cfg.Availability.Create)
	protected.Get("/unavailability", cfg.Availability.List)
	protected.Get("/unavailability/:id", cfg.Availability.Get)
	protected.Patch("/unavailability/:id", cfg.Availability.Update)
	protected.Delete("/unavailability/:id", cfg.Availability.Delete)

	protected.Get("/calendar/day", cfg.Availability.Day)
	protected.Get("/calendar.ics", cfg.Calendar.Export)

	lessons := protected.Group("/lessons")
	lessons.Post("/", cfg.Lessons.Create)
	lessons.Get("/", cfg.Lessons.List)
	lessons.Get("/:id", cfg.Lessons.Get)
	lessons.Patch("/:id", cfg.Lessons.Update)
	lessons.Delete("/:id", cfg.Lessons.Delete)
	lessons.Get("/:id/events", cfg.Lessons.Events)
	lessons.Post("/:id/confirm", cfg.Lessons.Confirm)
	lessons.Post("/:id/reject", cfg.Lessons.Reject)
	lessons.Post("/:id/cancel", cfg.Lessons.Cancel)
	lessons.Post("/:id/tardiness-alert", cfg.Lessons.TardinessAlert)
}
