package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string
	d.Subscribe(EventLessonProposed, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.SubjectID)
		return nil
	})
	d.Subscribe(EventLessonProposed, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.SubjectID)
		return nil
	})
	d.Subscribe(EventLessonConfirmed, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventLessonProposed, SubjectID: "l1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != "first:l1" || got[1] != "second:l1" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	reached := false
	d.Subscribe(EventLessonCancelled, func(context.Context, Event) error {
		return errors.New("transport down")
	})
	d.Subscribe(EventLessonCancelled, func(context.Context, Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{ID: "e1", Type: EventLessonCancelled}); err != nil {
		t.Fatalf("publish must not fail: %v", err)
	}
	if !reached {
		t.Fatal("later handlers must still run")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
}

func TestDispatcherIsolatesPanics(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	reached := false
	d.Subscribe(EventTardinessAlert, func(context.Context, Event) error {
		panic("nil handle")
	})
	d.Subscribe(EventTardinessAlert, func(context.Context, Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{ID: "e2", Type: EventTardinessAlert}); err != nil {
		t.Fatalf("publish must not fail: %v", err)
	}
	if !reached {
		t.Fatal("handlers after a panic must still run")
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["event_id"] != "e2" {
		t.Fatalf("expected one warning for e2, got %+v", entries)
	}
}
