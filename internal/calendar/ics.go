// Package calendar renders a user's schedule as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/recurrence"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

const (
	productID   = "-//lesson-scheduler//calendar//KO"
	uidDomain   = "lesson-scheduler"
	localLayout = "20060102T150405"
)

// Feed is the content of one exported calendar.
type Feed struct {
	Name    string
	Rules   []*domain.UnavailabilityRule
	Lessons []*domain.Lesson
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// Render serializes the feed. Rules keep their authoring zone (DTSTART;TZID)
// so recurrences follow that zone across DST; lessons are UTC. Rejected and
// cancelled lessons are left out.
func Render(feed Feed) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if feed.Name != "" {
		cal.SetXWRCalName(feed.Name)
	}

	for _, rule := range feed.Rules {
		if err := addRule(cal, rule, feed.Stamp); err != nil {
			return "", err
		}
	}
	for _, lesson := range feed.Lessons {
		if lesson.Status.Terminal() {
			continue
		}
		addLesson(cal, lesson, feed.Stamp)
	}
	return cal.Serialize(), nil
}

func addRule(cal *ics.Calendar, rule *domain.UnavailabilityRule, stamp time.Time) error {
	loc, err := timezone.LoadZone(rule.Timezone)
	if err != nil {
		return fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	ev := cal.AddEvent(rule.ID + "@" + uidDomain)
	ev.SetDtStampTime(stamp.UTC())
	ev.SetSequence(int(rule.Version))
	ev.SetSummary("Unavailable")
	if rule.IsAllDay {
		ev.SetAllDayStartAt(rule.Start.In(loc))
		ev.SetAllDayEndAt(rule.End.In(loc))
	} else {
		tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{rule.Timezone}}
		ev.SetProperty(ics.ComponentPropertyDtStart, rule.Start.In(loc).Format(localLayout), tzid)
		ev.SetProperty(ics.ComponentPropertyDtEnd, rule.End.In(loc).Format(localLayout), tzid)
	}
	if rr := recurrence.RRule(rule.Recurrence); rr != "" {
		ev.AddRrule(strings.TrimPrefix(rr, "RRULE:"))
	}
	return nil
}

func addLesson(cal *ics.Calendar, lesson *domain.Lesson, stamp time.Time) {
	ev := cal.AddEvent(lesson.ID + "@" + uidDomain)
	ev.SetDtStampTime(stamp.UTC())
	ev.SetSequence(int(lesson.Version))
	ev.SetStartAt(lesson.Start.UTC())
	ev.SetEndAt(lesson.End.UTC())
	if lesson.Status == domain.LessonStatusConfirmed {
		ev.SetSummary("Lesson")
		ev.SetStatus(ics.ObjectStatusConfirmed)
	} else {
		ev.SetSummary("Lesson (proposed)")
		ev.SetStatus(ics.ObjectStatusTentative)
	}
}
