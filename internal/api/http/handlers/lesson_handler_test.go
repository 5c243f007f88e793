package handlers

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/changefeed"
)

func TestStreamChanges(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	changes := make(chan changefeed.Change, 3)
	changes <- changefeed.Change{Collection: "lessons", ID: "l1", Event: "lesson.confirmed", Status: "confirmed", Version: 2}
	changes <- changefeed.Change{Collection: "lessons", ID: "l1", Event: "lesson.deleted", Deleted: true}
	changes <- changefeed.Change{Collection: "lessons", ID: "l1", Event: "never.sent"}

	first := changefeed.Change{Collection: "lessons", ID: "l1", Event: "snapshot", Status: "pending", Version: 1}
	if err := streamChanges(w, first, changes, time.Hour); err != nil {
		t.Fatalf("stream: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"event: snapshot\n", "event: lesson.confirmed\n", `"status":"confirmed"`, "event: lesson.deleted\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "never.sent") {
		t.Fatal("stream must stop after a deletion")
	}
	if strings.Count(out, "\n\n") != 3 {
		t.Fatalf("expected three framed events, got:\n%s", out)
	}
}

func TestStreamChangesEndsOnClose(t *testing.T) {
	var buf bytes.Buffer
	changes := make(chan changefeed.Change)
	close(changes)
	if err := streamChanges(bufio.NewWriter(&buf), changefeed.Change{Event: "snapshot"}, changes, time.Hour); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "event: snapshot\ndata: ") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestStreamChangesKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	changes := make(chan changefeed.Change)
	done := make(chan error, 1)
	go func() {
		done <- streamChanges(bufio.NewWriter(&buf), changefeed.Change{Event: "snapshot"}, changes, 5*time.Millisecond)
	}()
	time.Sleep(30 * time.Millisecond)
	close(changes)
	if err := <-done; err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !strings.Contains(buf.String(), ": keep-alive\n\n") {
		t.Fatalf("expected a keep-alive comment, got %q", buf.String())
	}
}
