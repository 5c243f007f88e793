package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spec-kit/lesson-scheduler/internal/calendar"
)

// ICSCmd writes a user's iCalendar feed.
type ICSCmd struct {
	Email  string `arg:"" help:"Email of the user to export."`
	Output string `short:"o" help:"File to write; '-' for stdout." default:"-"`
}

func (i *ICSCmd) Run(ctx *Context) error {
	user, err := ctx.userByEmail(i.Email)
	if err != nil {
		return err
	}
	rules, err := ctx.Availability.List(ctx.Ctx, user.ID, "")
	if err != nil {
		return err
	}
	lessons, err := ctx.Lessons.List(ctx.Ctx, user.ID, nil, nil)
	if err != nil {
		return err
	}
	body, err := calendar.Render(calendar.Feed{Name: user.Name, Rules: rules, Lessons: lessons, Stamp: ctx.Now()})
	if err != nil {
		return err
	}

	if i.Output == "-" {
		_, err = io.WriteString(ctx.Out, body)
		return err
	}
	if err := os.WriteFile(i.Output, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", i.Output, err)
	}
	fmt.Fprintf(ctx.Out, "wrote %d rules and %d lessons to %s\n", len(rules), len(lessons), i.Output)
	return nil
}
