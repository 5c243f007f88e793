package changefeed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed publishes changes on Redis channels named prefix:collection:id so
// every API replica sees every write.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisFeed uses client with the given channel prefix.
func NewRedisFeed(client *redis.Client, prefix string, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger}
}

var _ Feed = (*RedisFeed)(nil)

func (f *RedisFeed) channel(collection, id string) string {
	return f.prefix + ":" + key(collection, id)
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	raw, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel(change.Collection, change.ID), raw).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, collection, id string) (<-chan Change, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel(collection, id))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Change, subscriberBuffer)
	done := make(chan struct{})
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(stop) })
		<-done
	}

	go func() {
		defer close(done)
		defer close(out)
		defer pubsub.Close() //nolint:errcheck
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("discarding malformed change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
