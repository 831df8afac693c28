package service

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TriggerStore is the alert persistence the evaluator needs: the eligible
// alerts for a symbol and the conditional trigger commit
type TriggerStore interface {
	ListActiveUntriggered(ctx context.Context, symbol string) ([]model.Alert, error)
	CommitTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time, price decimal.Decimal, kind model.TriggerKind) error
}

// TriggerNotifier receives events for alerts that just fired
type TriggerNotifier interface {
	PublishTrigger(ctx context.Context, event model.TriggerEvent) error
}

// AlertEvaluator scans the active alerts for a symbol against each new
// price sample and commits the one-way trigger transition
type AlertEvaluator struct {
	store    TriggerStore
	notifier TriggerNotifier
	logger   *zap.Logger
}

// NewAlertEvaluator creates an alert evaluator. notifier may be nil when no
// downstream pipeline is configured.
func NewAlertEvaluator(store TriggerStore, notifier TriggerNotifier, logger *zap.Logger) *AlertEvaluator {
	return &AlertEvaluator{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// decideTrigger picks the trigger kind for an alert at the given price.
// Boundary values count: comparisons are inclusive.
func decideTrigger(alert *model.Alert, price decimal.Decimal) (model.TriggerKind, bool) {
	if price.LessThanOrEqual(alert.MinPrice) {
		return model.TriggerBelowMin, true
	}
	if price.GreaterThanOrEqual(alert.MaxPrice) {
		return model.TriggerAboveMax, true
	}
	return "", false
}

// Evaluate checks every active, untriggered alert for the snapshot's symbol
// exactly once and returns the ids of alerts that newly fired. A failure on
// one alert is logged and skipped; siblings are still evaluated. A cycle
// with no triggers performs no writes.
func (e *AlertEvaluator) Evaluate(ctx context.Context, snapshot *model.PriceSnapshot) ([]uuid.UUID, error) {
	alerts, err := e.store.ListActiveUntriggered(ctx, snapshot.Symbol)
	if err != nil {
		return nil, err
	}

	var triggered []uuid.UUID
	for i := range alerts {
		alert := &alerts[i]

		kind, fire := decideTrigger(alert, snapshot.Price)
		if !fire {
			continue
		}

		err := e.store.CommitTrigger(ctx, alert.ID, snapshot.Timestamp, snapshot.Price, kind)
		if err != nil {
			if errors.Is(err, repository.ErrAlreadyTriggered) {
				// Lost a race with another evaluation; the alert fired once.
				continue
			}
			e.logger.Error("Failed to commit alert trigger",
				zap.Error(err),
				zap.String("alert_id", alert.ID.String()),
				zap.String("symbol", snapshot.Symbol))
			continue
		}

		e.logger.Info("Alert triggered",
			zap.String("alert_id", alert.ID.String()),
			zap.String("user_id", alert.UserID.String()),
			zap.String("symbol", snapshot.Symbol),
			zap.String("kind", string(kind)),
			zap.String("price", snapshot.Price.String()))

		triggered = append(triggered, alert.ID)

		if e.notifier != nil {
			event := model.TriggerEvent{
				AlertID:     alert.ID,
				UserID:      alert.UserID,
				Symbol:      snapshot.Symbol,
				Kind:        kind,
				Price:       snapshot.Price,
				TriggeredAt: snapshot.Timestamp,
			}
			// The trigger is committed; a notification failure must not
			// undo or abort anything.
			if err := e.notifier.PublishTrigger(ctx, event); err != nil {
				e.logger.Warn("Trigger event not published",
					zap.Error(err),
					zap.String("alert_id", alert.ID.String()))
			}
		}
	}

	return triggered, nil
}
