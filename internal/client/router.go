package client

import (
	"context"
	"errors"
	"sync"

	"github.com/yourorg/crypto-alerts/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PriceSource is one upstream provider of price snapshots
type PriceSource interface {
	Name() model.Source
	FetchTicker(ctx context.Context, symbol string) (*model.PriceSnapshot, error)
}

// Router resolves a canonical snapshot per symbol: primary source first,
// secondary only when the primary fails or does not know the symbol. The
// short-circuit keeps load off the secondary provider and within its own
// rate limits.
type Router struct {
	primary   PriceSource
	secondary PriceSource
	logger    *zap.Logger
}

// NewRouter creates a price source router
func NewRouter(primary, secondary PriceSource, logger *zap.Logger) *Router {
	return &Router{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Resolve returns the canonical snapshot for one symbol, or ErrUnavailable
// when both sources failed. An unavailable symbol is the caller's to skip;
// it never aborts sibling symbols.
func (r *Router) Resolve(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	snapshot, err := r.primary.FetchTicker(ctx, symbol)
	if err == nil {
		return snapshot, nil
	}

	if !errors.Is(err, ErrSymbolNotFound) && !IsTransient(err) {
		return nil, err
	}

	r.logger.Debug("Primary source failed, falling back",
		zap.String("symbol", symbol),
		zap.String("primary", string(r.primary.Name())),
		zap.Error(err))

	snapshot, err = r.secondary.FetchTicker(ctx, symbol)
	if err != nil {
		r.logger.Warn("All price sources failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return nil, ErrUnavailable
	}

	return snapshot, nil
}

// ResolveBatch resolves several symbols concurrently and returns the
// snapshots that succeeded. A symbol failing on both sources is dropped
// from the result, it does not discard the others.
func (r *Router) ResolveBatch(ctx context.Context, symbols []string) []*model.PriceSnapshot {
	var (
		mu        sync.Mutex
		snapshots []*model.PriceSnapshot
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			snapshot, err := r.Resolve(ctx, symbol)
			if err != nil {
				r.logger.Debug("Skipping unavailable symbol in batch",
					zap.String("symbol", symbol),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			snapshots = append(snapshots, snapshot)
			mu.Unlock()
			return nil
		})
	}

	// Workers only ever return nil; the group is used for the join.
	_ = g.Wait()

	return snapshots
}
