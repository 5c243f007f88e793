// Package changefeed is the document subscribe primitive: callers watch one
// document and receive a Change whenever it is written.
package changefeed

import (
	"context"
	"time"
)

// Collections that publish changes.
const (
	CollectionLessons        = "lessons"
	CollectionUnavailability = "unavailability"
)

// Change describes one write to a document. Subscribers refetch the document
// when they need more than the status.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	Status     string    `json:"status,omitempty"`
	Version    int64     `json:"version,omitempty"`
	Deleted    bool      `json:"deleted,omitempty"`
	At         time.Time `json:"at"`
}

// Feed publishes and subscribes to document changes.
type Feed interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe delivers changes to (collection, id) until ctx is done or the
	// returned cancel func is called; the channel is then closed.
	Subscribe(ctx context.Context, collection, id string) (<-chan Change, func(), error)
}

const subscriberBuffer = 16

func key(collection, id string) string {
	return collection + ":" + id
}
