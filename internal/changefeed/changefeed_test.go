package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func testFeed(t *testing.T, feed Feed) {
	ctx := context.Background()
	ch, cancel, err := feed.Subscribe(ctx, CollectionLessons, "l-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := feed.Publish(ctx, Change{Collection: CollectionLessons, ID: "other", Event: "lesson.updated"}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if err := feed.Publish(ctx, Change{Collection: CollectionLessons, ID: "l-1", Event: "lesson.confirmed", Status: "confirmed", Version: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := receive(t, ch)
	if got.ID != "l-1" || got.Status != "confirmed" || got.Version != 2 {
		t.Fatalf("unexpected change %+v", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
	cancel()
}

func TestMemoryFeed(t *testing.T) {
	feed := NewMemoryFeed()
	testFeed(t, feed)
	if n := feed.Subscribers(CollectionLessons, "l-1"); n != 0 {
		t.Fatalf("expected subscription cleanup, got %d", n)
	}
}

func TestMemoryFeedContextCancel(t *testing.T) {
	feed := NewMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := feed.Subscribe(ctx, CollectionLessons, "l-2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	for range ch {
	}
	if n := feed.Subscribers(CollectionLessons, "l-2"); n != 0 {
		t.Fatalf("expected cleanup after ctx cancel, got %d", n)
	}
}

func TestRedisFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	testFeed(t, NewRedisFeed(client, "docs", zap.NewNop()))
}

func TestBridge(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	feed := NewMemoryFeed()
	Bridge(dispatcher, feed)

	ctx := context.Background()
	ch, cancel, _ := feed.Subscribe(ctx, CollectionLessons, "l-3")
	defer cancel()

	lesson := domain.Lesson{ID: "l-3", Status: domain.LessonStatusCancelled, Version: 3}
	_ = dispatcher.Publish(ctx, events.Event{
		Type:      events.EventLessonCancelled,
		SubjectID: "l-3",
		Payload:   events.LessonPayload{Lesson: lesson},
	})
	got := receive(t, ch)
	if got.Event != "lesson.cancelled" || got.Status != "cancelled" || got.Version != 3 || got.Deleted {
		t.Fatalf("unexpected change %+v", got)
	}

	rules, cancelRules, _ := feed.Subscribe(ctx, CollectionUnavailability, "r-1")
	defer cancelRules()
	_ = dispatcher.Publish(ctx, events.Event{
		Type:      events.EventUnavailabilityDeleted,
		SubjectID: "r-1",
		Payload:   events.UnavailabilityPayload{Rule: domain.UnavailabilityRule{ID: "r-1"}},
	})
	if got := receive(t, rules); !got.Deleted || got.Collection != CollectionUnavailability {
		t.Fatalf("unexpected rule change %+v", got)
	}
}
