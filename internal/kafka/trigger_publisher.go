package kafka

import (
	"context"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// TriggerPublisher emits alert trigger events for the downstream
// notification pipeline. Publishing is best-effort: the trigger commit has
// already happened, so failures are retried briefly and then logged.
type TriggerPublisher struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
}

// NewTriggerPublisher creates a trigger event publisher
func NewTriggerPublisher(producer *Producer, topic string, logger *zap.Logger) *TriggerPublisher {
	return &TriggerPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishTrigger sends one trigger event, retrying transient broker
// failures with exponential backoff
func (p *TriggerPublisher) PublishTrigger(ctx context.Context, event model.TriggerEvent) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	operation := func() error {
		return p.producer.Publish(ctx, p.topic, Message{
			Key:   event.AlertID.String(),
			Value: event,
		})
	}

	if err := backoff.Retry(operation, policy); err != nil {
		p.logger.Error("Failed to publish trigger event",
			zap.Error(err),
			zap.String("alert_id", event.AlertID.String()),
			zap.String("symbol", event.Symbol))
		return err
	}

	p.logger.Info("Trigger event published",
		zap.String("alert_id", event.AlertID.String()),
		zap.String("symbol", event.Symbol),
		zap.String("kind", string(event.Kind)),
		zap.Time("triggered_at", event.TriggeredAt.Truncate(time.Millisecond)))

	return nil
}
