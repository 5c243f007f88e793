package changefeed

import (
	"context"

	"github.com/spec-kit/lesson-scheduler/internal/events"
)

// Bridge publishes a Change for every lesson and unavailability event.
func Bridge(dispatcher events.Dispatcher, feed Feed) {
	for _, t := range events.LessonEventTypes {
		dispatcher.Subscribe(t, func(ctx context.Context, ev events.Event) error {
			return feed.Publish(ctx, FromEvent(ev))
		})
	}
	for _, t := range []events.EventType{events.EventUnavailabilityCreated, events.EventUnavailabilityUpdated, events.EventUnavailabilityDeleted} {
		dispatcher.Subscribe(t, func(ctx context.Context, ev events.Event) error {
			return feed.Publish(ctx, FromEvent(ev))
		})
	}
}

// FromEvent derives the Change an event represents.
func FromEvent(ev events.Event) Change {
	change := Change{ID: ev.SubjectID, Event: string(ev.Type), At: ev.Timestamp}
	switch p := ev.Payload.(type) {
	case events.LessonPayload:
		change.Collection = CollectionLessons
		change.Status = string(p.Lesson.Status)
		change.Version = p.Lesson.Version
	case events.UnavailabilityPayload:
		change.Collection = CollectionUnavailability
		change.Version = p.Rule.Version
	}
	change.Deleted = ev.Type == events.EventLessonDeleted || ev.Type == events.EventUnavailabilityDeleted
	return change
}
