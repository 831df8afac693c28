package service

import (
	"context"

	"github.com/yourorg/crypto-alerts/internal/cache"
	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/repository"

	"go.uber.org/zap"
)

// SnapshotRecorder persists each polled snapshot: latest value into the
// cache for REST reads, and a history row for the time series. Either sink
// failing is logged and does not block the other or the cycle.
type SnapshotRecorder struct {
	priceCache  *cache.PriceCache
	historyRepo *repository.PriceHistoryRepository
	logger      *zap.Logger
}

// NewSnapshotRecorder creates a snapshot recorder. Both sinks are optional.
func NewSnapshotRecorder(
	priceCache *cache.PriceCache,
	historyRepo *repository.PriceHistoryRepository,
	logger *zap.Logger,
) *SnapshotRecorder {
	return &SnapshotRecorder{
		priceCache:  priceCache,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// Record stores the snapshot in the configured sinks
func (r *SnapshotRecorder) Record(ctx context.Context, snapshot *model.PriceSnapshot) {
	if r.priceCache != nil {
		if err := r.priceCache.SetLatest(ctx, snapshot); err != nil {
			r.logger.Warn("Failed to cache polled snapshot",
				zap.Error(err),
				zap.String("symbol", snapshot.Symbol))
		}
	}

	if r.historyRepo != nil {
		sample := &model.PriceHistory{
			Symbol:    snapshot.Symbol,
			Price:     snapshot.Price,
			Volume:    snapshot.Volume,
			Change24h: snapshot.Change24h,
			Timestamp: snapshot.Timestamp,
		}
		if err := r.historyRepo.InsertSample(ctx, sample); err != nil {
			r.logger.Warn("Failed to persist price sample",
				zap.Error(err),
				zap.String("symbol", snapshot.Symbol))
		}
	}
}
