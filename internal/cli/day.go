package cli

import (
	"fmt"

	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

// DayCmd prints a user's merged unavailability for one date, as a viewer
// (the user themself by default) sees it.
type DayCmd struct {
	Email  string `arg:"" help:"Email of the user whose availability to show."`
	Date   string `arg:"" help:"Date to show (YYYY-MM-DD or 'today')." default:"today"`
	Viewer string `help:"Email of the viewing user; must be the user or their partner."`
}

func (d *DayCmd) Run(ctx *Context) error {
	owner, err := ctx.userByEmail(d.Email)
	if err != nil {
		return err
	}
	viewer := owner
	if d.Viewer != "" {
		if viewer, err = ctx.userByEmail(d.Viewer); err != nil {
			return err
		}
	}
	loc, err := timezone.LoadZone(viewer.Timezone)
	if err != nil {
		return err
	}
	day, err := ctx.resolveDate(d.Date, loc)
	if err != nil {
		return err
	}

	blocks, err := ctx.Availability.Day(ctx.Ctx, viewer.ID, owner.ID, day)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s on %s (%s):\n", owner.Name, day, viewer.Timezone)
	if len(blocks) == 0 {
		fmt.Fprintln(ctx.Out, "  available all day")
		return nil
	}
	for _, b := range blocks {
		start, end := b.Start.In(loc), b.End.In(loc)
		if b.IsAllDay {
			fmt.Fprintf(ctx.Out, "  all day     %s - %s\n", start.Format("01-02 15:04"), end.Format("01-02 15:04"))
			continue
		}
		fmt.Fprintf(ctx.Out, "  %s-%s\n", start.Format("15:04"), end.Format("15:04"))
	}
	return nil
}
