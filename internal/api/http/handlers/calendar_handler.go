package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lesson-scheduler/internal/auth"
	"github.com/spec-kit/lesson-scheduler/internal/calendar"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// CalendarHandler exports the caller's schedule as iCalendar.
type CalendarHandler struct {
	availability *service.AvailabilityService
	lessons      *service.LessonService
	now          func() time.Time
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(availability *service.AvailabilityService, lessons *service.LessonService) *CalendarHandler {
	return &CalendarHandler{availability: availability, lessons: lessons, now: time.Now}
}

// Export handles GET /calendar.ics.
func (h *CalendarHandler) Export(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	rules, err := h.availability.List(ctx, principal.UserID, "")
	if err != nil {
		return err
	}
	lessons, err := h.lessons.List(ctx, principal.UserID, nil, nil)
	if err != nil {
		return err
	}
	body, err := calendar.Render(calendar.Feed{
		Name:    principal.User.Name,
		Rules:   rules,
		Lessons: lessons,
		Stamp:   h.now(),
	})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="schedule.ics"`)
	return c.SendString(body)
}
