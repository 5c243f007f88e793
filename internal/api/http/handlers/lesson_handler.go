package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/api/dto"
	"github.com/spec-kit/lesson-scheduler/internal/changefeed"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

const defaultKeepAlive = 15 * time.Second

// LessonHandler serves lesson booking endpoints.
type LessonHandler struct {
	lessons   *service.LessonService
	feed      changefeed.Feed
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewLessonHandler constructs handler. feed may be nil, which disables the
// event stream.
func NewLessonHandler(lessons *service.LessonService, feed changefeed.Feed, logger *zap.Logger) *LessonHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonHandler{lessons: lessons, feed: feed, logger: logger, keepAlive: defaultKeepAlive}
}

// Create handles POST /lessons.
func (h *LessonHandler) Create(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.LessonTimeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	start, end, err := h.lessonRange(c.UserContext(), actorID, req)
	if err != nil {
		return err
	}
	if start == nil || end == nil {
		return apperrors.NewValidationError("start and end required", nil)
	}
	lesson, err := h.lessons.Propose(c.UserContext(), actorID, *start, *end)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.response(lesson)})
}

// List handles GET /lessons?from=&to= (RFC3339, optional).
func (h *LessonHandler) List(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	from, err := parseInstant("from", c.Query("from"))
	if err != nil {
		return err
	}
	to, err := parseInstant("to", c.Query("to"))
	if err != nil {
		return err
	}
	lessons, err := h.lessons.List(c.UserContext(), actorID, from, to)
	if err != nil {
		return err
	}
	items := make([]dto.LessonResponse, 0, len(lessons))
	for _, l := range lessons {
		items = append(items, h.response(l))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /lessons/:id.
func (h *LessonHandler) Get(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	lesson, err := h.lessons.Get(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(lesson)})
}

// Update handles PATCH /lessons/:id. Only pending lessons can move.
func (h *LessonHandler) Update(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.LessonTimeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	start, end, err := h.lessonRange(c.UserContext(), actorID, req)
	if err != nil {
		return err
	}
	lesson, err := h.lessons.Update(c.UserContext(), actorID, c.Params("id"), domain.LessonPatch{Start: start, End: end})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(lesson)})
}

// Delete handles DELETE /lessons/:id.
func (h *LessonHandler) Delete(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	if err := h.lessons.Delete(c.UserContext(), actorID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Confirm handles POST /lessons/:id/confirm.
func (h *LessonHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(c, h.lessons.Confirm)
}

// Reject handles POST /lessons/:id/reject.
func (h *LessonHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.lessons.Reject)
}

// Cancel handles POST /lessons/:id/cancel {reason}.
func (h *LessonHandler) Cancel(c *fiber.Ctx) error {
	var req dto.CancelLessonRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidPayload()
		}
	}
	return h.transition(c, func(ctx context.Context, actorID, lessonID string) (*domain.Lesson, error) {
		return h.lessons.Cancel(ctx, actorID, lessonID, req.Reason)
	})
}

// TardinessAlert handles POST /lessons/:id/tardiness-alert.
func (h *LessonHandler) TardinessAlert(c *fiber.Ctx) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	if err := h.lessons.SendTardinessAlert(c.UserContext(), actorID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}

// Events handles GET /lessons/:id/events as a Server-Sent Events stream.
// The first event is the current state; the stream ends when the lesson is
// deleted or the client goes away.
func (h *LessonHandler) Events(c *fiber.Ctx) error {
	if h.feed == nil {
		return apperrors.NewDependencyFailure(fmt.Errorf("change feed not configured"))
	}
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	lesson, err := h.lessons.Get(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return err
	}

	// The body writer runs after the handler returns, outside the request context.
	ctx, cancel := context.WithCancel(context.Background())
	changes, unsubscribe, err := h.feed.Subscribe(ctx, changefeed.CollectionLessons, lesson.ID)
	if err != nil {
		cancel()
		return apperrors.NewDependencyFailure(err)
	}
	snapshot := changefeed.Change{
		Collection: changefeed.CollectionLessons,
		ID:         lesson.ID,
		Event:      "snapshot",
		Status:     string(lesson.Status),
		Version:    lesson.Version,
		At:         lesson.UpdatedAt,
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()
		if err := streamChanges(w, snapshot, changes, h.keepAlive); err != nil {
			h.logger.Debug("event stream closed", zap.String("lesson_id", lesson.ID), zap.Error(err))
		}
	})
	return nil
}

// streamChanges writes first and then every change until the channel closes,
// a deletion is written, or a write fails.
func streamChanges(w *bufio.Writer, first changefeed.Change, changes <-chan changefeed.Change, keepAlive time.Duration) error {
	if err := writeEvent(w, first); err != nil {
		return err
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := writeEvent(w, change); err != nil {
				return err
			}
			if change.Deleted {
				return nil
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, change changefeed.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Event, data); err != nil {
		return err
	}
	return w.Flush()
}

func (h *LessonHandler) transition(c *fiber.Ctx, op func(context.Context, string, string) (*domain.Lesson, error)) error {
	actorID, err := principalID(c)
	if err != nil {
		return err
	}
	lesson, err := op(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(lesson)})
}

// lessonRange resolves either request form. The wall-clock form yields both
// ends; the instant form may give only one of them.
func (h *LessonHandler) lessonRange(ctx context.Context, actorID string, req dto.LessonTimeRequest) (*time.Time, *time.Time, error) {
	if req.Date == "" && req.StartTime == "" && req.EndTime == "" {
		return req.Start, req.End, nil
	}
	if req.Start != nil || req.End != nil {
		return nil, nil, apperrors.NewValidationError("use either start/end or date/start_time/end_time", nil)
	}
	day, err := parseDate("date", req.Date)
	if err != nil {
		return nil, nil, err
	}
	startClock, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return nil, nil, err
	}
	endClock, err := parseClock("end_time", req.EndTime)
	if err != nil {
		return nil, nil, err
	}
	start, end, err := h.lessons.LocalRange(ctx, actorID, day, startClock, endClock)
	if err != nil {
		return nil, nil, err
	}
	return &start, &end, nil
}

func (h *LessonHandler) response(l *domain.Lesson) dto.LessonResponse {
	return lessonResponse(l, h.lessons.Completed(l))
}
