package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sender delivers a rendered instruction to the push transport.
type Sender interface {
	Send(ctx context.Context, in Instruction) error
}

// LogSender writes instructions to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a sender for development setups.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, in Instruction) error {
	s.logger.Info("push notification",
		zap.String("type", string(in.Type)),
		zap.String("recipient_id", in.RecipientID),
		zap.String("title", in.Title),
		zap.String("body", in.Body))
	return nil
}

// PushJob is the JSON document queued for the push gateway.
type PushJob struct {
	Token      string            `json:"token"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// RedisQueueSender appends push jobs to a Redis list drained by the gateway.
type RedisQueueSender struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

// NewRedisQueueSender queues onto key.
func NewRedisQueueSender(client redis.Cmdable, key string) *RedisQueueSender {
	return &RedisQueueSender{client: client, key: key, now: time.Now}
}

func (s *RedisQueueSender) Send(ctx context.Context, in Instruction) error {
	raw, err := json.Marshal(PushJob{
		Token:      in.Handle,
		Title:      in.Title,
		Body:       in.Body,
		Data:       in.Data,
		EnqueuedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.key, raw).Err()
}
