package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yourorg/crypto-alerts/internal/cache"
	"github.com/yourorg/crypto-alerts/internal/client"
	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SupportedSymbols is the set of tickers the service resolves through the
// secondary source mapping; exposed for the REST surface.
var SupportedSymbols = []string{
	"BTC", "ETH", "BNB", "ADA", "DOT", "XRP", "LINK",
	"XLM", "USDT", "USDC", "DOGE", "SOL", "AVAX", "MATIC",
	"SAND", "AAVE", "PAXG", "IMX",
}

// PriceService answers price queries for the REST surface: current prices
// through the cache with provider fallback, user-saved samples and
// historical candles.
type PriceService struct {
	router      *client.Router
	binance     *client.BinanceClient
	priceCache  *cache.PriceCache
	historyRepo *repository.PriceHistoryRepository
	logger      *zap.Logger
}

// NewPriceService creates a new price service
func NewPriceService(
	router *client.Router,
	binance *client.BinanceClient,
	priceCache *cache.PriceCache,
	historyRepo *repository.PriceHistoryRepository,
	logger *zap.Logger,
) *PriceService {
	return &PriceService{
		router:      router,
		binance:     binance,
		priceCache:  priceCache,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// GetCurrentPrice returns the freshest snapshot for a symbol. The polling
// loop keeps the cache warm for tracked symbols; anything else falls
// through to the providers.
func (s *PriceService) GetCurrentPrice(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	symbol = strings.ToUpper(symbol)

	if s.priceCache != nil {
		snapshot, err := s.priceCache.GetLatest(ctx, symbol)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Cache read failed, resolving from providers",
				zap.Error(err),
				zap.String("symbol", symbol))
		}
	}

	snapshot, err := s.router.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if s.priceCache != nil {
		if err := s.priceCache.SetLatest(ctx, snapshot); err != nil {
			s.logger.Debug("Failed to cache resolved snapshot",
				zap.Error(err),
				zap.String("symbol", symbol))
		}
	}

	return snapshot, nil
}

// GetCurrentPrices resolves several symbols at once, skipping the ones no
// source can serve
func (s *PriceService) GetCurrentPrices(ctx context.Context, symbols []string) []*model.PriceSnapshot {
	for i := range symbols {
		symbols[i] = strings.ToUpper(symbols[i])
	}
	return s.router.ResolveBatch(ctx, symbols)
}

// SaveUserSample fetches the current price and persists it as a sample
// owned by the user
func (s *PriceService) SaveUserSample(ctx context.Context, userID uuid.UUID, symbol string) (*model.PriceHistory, error) {
	snapshot, err := s.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	sample := &model.PriceHistory{
		UserID:    &userID,
		Symbol:    snapshot.Symbol,
		Price:     snapshot.Price,
		Volume:    snapshot.Volume,
		Change24h: snapshot.Change24h,
		Timestamp: time.Now().UTC(),
	}

	if err := s.historyRepo.InsertSample(ctx, sample); err != nil {
		return nil, err
	}

	return sample, nil
}

// GetUserHistory returns the samples a user saved for a symbol
func (s *PriceService) GetUserHistory(
	ctx context.Context,
	userID uuid.UUID,
	symbol string,
	startDate, endDate *time.Time,
	limit int,
) ([]model.PriceHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.historyRepo.GetUserHistory(ctx, userID, strings.ToUpper(symbol), startDate, endDate, limit)
}

// GetHistoricalCandles returns recent OHLCV bars from the primary provider
func (s *PriceService) GetHistoricalCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return s.binance.FetchKlines(ctx, symbol, interval, limit)
}
