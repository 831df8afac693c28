package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PriceHistoryRepository handles database operations for persisted price
// samples
type PriceHistoryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPriceHistoryRepository creates a new price history repository
func NewPriceHistoryRepository(db *sqlx.DB, logger *zap.Logger) *PriceHistoryRepository {
	return &PriceHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// InsertSample persists one price sample. UserID nil marks a sample recorded
// by the polling loop rather than saved by a user.
func (r *PriceHistoryRepository) InsertSample(ctx context.Context, sample *model.PriceHistory) error {
	query := `
		INSERT INTO price_history (id, user_id, symbol, price, volume, change_24h, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	sample.ID = uuid.New()

	_, err := r.db.ExecContext(ctx, query,
		sample.ID,
		sample.UserID,
		sample.Symbol,
		sample.Price,
		sample.Volume,
		sample.Change24h,
		sample.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to insert price sample",
			zap.Error(err),
			zap.String("symbol", sample.Symbol))
		return err
	}

	return nil
}

// GetUserHistory retrieves samples a user saved for a symbol, newest first
func (r *PriceHistoryRepository) GetUserHistory(
	ctx context.Context,
	userID uuid.UUID,
	symbol string,
	startDate *time.Time,
	endDate *time.Time,
	limit int,
) ([]model.PriceHistory, error) {
	query := `
		SELECT id, user_id, symbol, price, volume, change_24h, timestamp
		FROM price_history
		WHERE user_id = $1 AND symbol = $2
	`

	args := []interface{}{userID, symbol}
	argCount := 3

	if startDate != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *startDate)
		argCount++
	}

	if endDate != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *endDate)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var history []model.PriceHistory
	err := r.db.SelectContext(ctx, &history, query, args...)
	if err != nil {
		r.logger.Error("Failed to get price history",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("user_id", userID.String()))
		return nil, err
	}

	return history, nil
}
