package changefeed

import (
	"context"
	"sync"
)

type subscriber struct {
	ch   chan Change
	done chan struct{}
	once sync.Once
}

// MemoryFeed fans changes out to in-process subscribers. A slow subscriber
// misses changes rather than blocking the publisher.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewMemoryFeed returns an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*subscriber]struct{})}
}

var _ Feed = (*MemoryFeed)(nil)

func (f *MemoryFeed) Publish(_ context.Context, change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[key(change.Collection, change.ID)] {
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, collection, id string) (<-chan Change, func(), error) {
	k := key(collection, id)
	sub := &subscriber{ch: make(chan Change, subscriberBuffer), done: make(chan struct{})}

	f.mu.Lock()
	if f.subs[k] == nil {
		f.subs[k] = make(map[*subscriber]struct{})
	}
	f.subs[k][sub] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			f.mu.Lock()
			delete(f.subs[k], sub)
			if len(f.subs[k]) == 0 {
				delete(f.subs, k)
			}
			close(sub.ch)
			close(sub.done)
			f.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel, nil
}

// Subscribers reports how many subscriptions are open on a document.
func (f *MemoryFeed) Subscribers(collection, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[key(collection, id)])
}
