package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrAlertNotFound means no alert matched the given id (and owner)
var ErrAlertNotFound = errors.New("alert not found")

// ErrAlreadyTriggered means the conditional trigger commit found the alert
// already triggered or deactivated. Callers treat it as a benign no-op.
var ErrAlreadyTriggered = errors.New("alert already triggered")

// AlertRepository handles database operations for alerts
type AlertRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlert inserts a new alert and returns it with generated fields set
func (r *AlertRepository) CreateAlert(ctx context.Context, alert *model.Alert) error {
	query := `
		INSERT INTO alerts (id, user_id, symbol, min_price, max_price, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	alert.ID = uuid.New()
	alert.IsActive = true
	alert.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Symbol,
		alert.MinPrice,
		alert.MaxPrice,
		alert.IsActive,
		alert.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create alert",
			zap.Error(err),
			zap.String("symbol", alert.Symbol),
			zap.String("user_id", alert.UserID.String()))
		return err
	}

	return nil
}

// GetAlert retrieves one alert owned by a user
func (r *AlertRepository) GetAlert(ctx context.Context, userID, alertID uuid.UUID) (*model.Alert, error) {
	query := `
		SELECT id, user_id, symbol, min_price, max_price, is_active, created_at,
		       triggered_at, triggered_price, triggered_kind
		FROM alerts
		WHERE id = $1 AND user_id = $2
	`

	var alert model.Alert
	err := r.db.GetContext(ctx, &alert, query, alertID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		r.logger.Error("Failed to get alert",
			zap.Error(err),
			zap.String("alert_id", alertID.String()))
		return nil, err
	}

	return &alert, nil
}

// ListUserAlerts retrieves all alerts owned by a user, newest first
func (r *AlertRepository) ListUserAlerts(ctx context.Context, userID uuid.UUID) ([]model.Alert, error) {
	query := `
		SELECT id, user_id, symbol, min_price, max_price, is_active, created_at,
		       triggered_at, triggered_price, triggered_kind
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var alerts []model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, userID)
	if err != nil {
		r.logger.Error("Failed to list alerts",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return nil, err
	}

	return alerts, nil
}

// ListTriggeredAlerts retrieves a user's triggered alerts, most recent first
func (r *AlertRepository) ListTriggeredAlerts(ctx context.Context, userID uuid.UUID) ([]model.Alert, error) {
	query := `
		SELECT id, user_id, symbol, min_price, max_price, is_active, created_at,
		       triggered_at, triggered_price, triggered_kind
		FROM alerts
		WHERE user_id = $1 AND triggered_at IS NOT NULL
		ORDER BY triggered_at DESC
	`

	var alerts []model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, userID)
	if err != nil {
		r.logger.Error("Failed to list triggered alerts",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return nil, err
	}

	return alerts, nil
}

// UpdateAlert updates the mutable fields of an untriggered alert
func (r *AlertRepository) UpdateAlert(ctx context.Context, alert *model.Alert) error {
	query := `
		UPDATE alerts
		SET min_price = $1, max_price = $2, is_active = $3
		WHERE id = $4 AND user_id = $5 AND triggered_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		alert.MinPrice,
		alert.MaxPrice,
		alert.IsActive,
		alert.ID,
		alert.UserID,
	)
	if err != nil {
		r.logger.Error("Failed to update alert",
			zap.Error(err),
			zap.String("alert_id", alert.ID.String()))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// DeleteAlert removes an alert owned by a user
func (r *AlertRepository) DeleteAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	query := `DELETE FROM alerts WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		r.logger.Error("Failed to delete alert",
			zap.Error(err),
			zap.String("alert_id", alertID.String()))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// ListActiveUntriggered retrieves the alerts eligible for evaluation
// against a new price sample of the given symbol
func (r *AlertRepository) ListActiveUntriggered(ctx context.Context, symbol string) ([]model.Alert, error) {
	query := `
		SELECT id, user_id, symbol, min_price, max_price, is_active, created_at,
		       triggered_at, triggered_price, triggered_kind
		FROM alerts
		WHERE symbol = $1 AND is_active = true AND triggered_at IS NULL
	`

	var alerts []model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, symbol)
	if err != nil {
		r.logger.Error("Failed to list active alerts",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, err
	}

	return alerts, nil
}

// CommitTrigger performs the one-way trigger transition as a single
// conditional update. The WHERE clause guarantees at-most-once semantics:
// a second commit for the same alert affects zero rows and reports
// ErrAlreadyTriggered without touching the stored trigger fields.
func (r *AlertRepository) CommitTrigger(
	ctx context.Context,
	alertID uuid.UUID,
	triggeredAt time.Time,
	price decimal.Decimal,
	kind model.TriggerKind,
) error {
	query := `
		UPDATE alerts
		SET triggered_at = $2, triggered_price = $3, triggered_kind = $4, is_active = false
		WHERE id = $1 AND is_active = true AND triggered_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, alertID, triggeredAt, price, kind)
	if err != nil {
		r.logger.Error("Failed to commit alert trigger",
			zap.Error(err),
			zap.String("alert_id", alertID.String()))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyTriggered
	}

	return nil
}
