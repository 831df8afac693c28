package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss means no fresh snapshot is cached for the symbol
var ErrCacheMiss = errors.New("snapshot not in cache")

// PriceCache keeps the latest snapshot per symbol in Redis so REST price
// reads don't hit the upstream providers between polling cycles.
type PriceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewPriceCache creates a Redis-backed snapshot cache
func NewPriceCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *PriceCache {
	return &PriceCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *PriceCache) key(symbol string) string {
	return c.prefix + strings.ToUpper(symbol)
}

// SetLatest stores the snapshot as the current value for its symbol
func (c *PriceCache) SetLatest(ctx context.Context, snapshot *model.PriceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key(snapshot.Symbol), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache snapshot",
			zap.Error(err),
			zap.String("symbol", snapshot.Symbol))
		return err
	}

	return nil
}

// GetLatest returns the cached snapshot for a symbol, or ErrCacheMiss
func (c *PriceCache) GetLatest(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	payload, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		c.logger.Warn("Failed to read cached snapshot",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, err
	}

	var snapshot model.PriceSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
