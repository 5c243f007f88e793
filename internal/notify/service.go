package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/observability"
)

// Service turns events into deliveries. Failures are logged and counted and
// never returned.
type Service struct {
	policy  *Policy
	sender  Sender
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService wires a policy to a sender.
func NewService(policy *Policy, sender Sender, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{policy: policy, sender: sender, logger: logger, metrics: metrics}
}

// Handle decides and sends for one event. It always returns nil.
func (s *Service) Handle(ctx context.Context, ev events.Event) error {
	eventType := string(ev.Type)
	logger := s.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", eventType))

	in, ok, err := s.policy.Decide(ctx, ev)
	if err != nil {
		logger.Warn("notification decision failed", zap.Error(err))
		s.metrics.RecordNotification(eventType, observability.NotificationFailed)
		return nil
	}
	if !ok {
		logger.Debug("notification skipped")
		s.metrics.RecordNotification(eventType, observability.NotificationSkipped)
		return nil
	}
	if err := s.sender.Send(ctx, in); err != nil {
		logger.Warn("notification delivery failed", zap.String("recipient_id", in.RecipientID), zap.Error(err))
		s.metrics.RecordNotification(eventType, observability.NotificationFailed)
		return nil
	}
	logger.Info("notification sent", zap.String("recipient_id", in.RecipientID), zap.String("message", string(in.Type)))
	s.metrics.RecordNotification(eventType, observability.NotificationSent)
	return nil
}
