// Package cli implements the schedctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	"github.com/spec-kit/lesson-scheduler/internal/store"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

// Context is handed to every command's Run.
type Context struct {
	Ctx    context.Context
	Config config.Config
	Store  *store.Store
	Out    io.Writer
	Logger *zap.Logger
	Now    func() time.Time

	Users        *service.UserService
	Availability *service.AvailabilityService
	Lessons      *service.LessonService
}

// NewContext builds the services over an open store. Events raised by
// commands are logged and not delivered.
func NewContext(ctx context.Context, cfg config.Config, st *store.Store, out io.Writer, logger *zap.Logger) *Context {
	deps := service.Dependencies{
		Users:   st.Users,
		Lessons: st.Lessons,
		Rules:   st.Rules,
		Logger:  logger,
	}
	return &Context{
		Ctx:          ctx,
		Config:       cfg,
		Store:        st,
		Out:          out,
		Logger:       logger,
		Now:          time.Now,
		Users:        service.NewUserService(deps),
		Availability: service.NewAvailabilityService(deps),
		Lessons:      service.NewLessonService(deps),
	}
}

func (c *Context) userByEmail(email string) (*domain.User, error) {
	u, err := c.Store.Users.GetByEmail(c.Ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", email, err)
	}
	return u, nil
}

// resolveDate accepts YYYY-MM-DD or "today" as seen in loc.
func (c *Context) resolveDate(value string, loc *time.Location) (timezone.Date, error) {
	if value == "" || value == "today" {
		return timezone.DateOf(c.Now(), loc), nil
	}
	d, err := timezone.ParseDate(value)
	if err != nil {
		return timezone.Date{}, fmt.Errorf("invalid date, use YYYY-MM-DD or 'today': %w", err)
	}
	return d, nil
}
