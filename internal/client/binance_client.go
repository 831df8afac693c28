package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BinanceAPIBaseURL = "https://api.binance.com/api/v3"
	MaxKlinesLimit    = 1000

	// Binance spot pairs are quoted against USDT
	quoteAsset = "USDT"
)

// BinanceClient handles communication with the Binance API. It is the
// primary price source.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBinanceClient creates a new Binance API client
func NewBinanceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BinanceClient {
	if baseURL == "" {
		baseURL = BinanceAPIBaseURL
	}
	return &BinanceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name identifies this source in logs and snapshots
func (c *BinanceClient) Name() model.Source {
	return model.SourceBinance
}

// FetchTicker retrieves the current 24h ticker for a symbol and normalizes
// it into a PriceSnapshot. One round trip per call.
func (c *BinanceClient) FetchTicker(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	pair := strings.ToUpper(symbol) + quoteAsset
	reqURL := fmt.Sprintf("%s/ticker/24hr?symbol=%s", c.baseURL, url.QueryEscape(pair))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to fetch ticker from Binance",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, &TransientError{Provider: "binance", Err: err}
	}
	defer resp.Body.Close()

	// Binance answers an unknown pair with 400 ("Invalid symbol")
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("binance: %q: %w", symbol, ErrSymbolNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Warn("Binance API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("symbol", symbol),
			zap.String("response", string(bodyBytes)))
		return nil, &TransientError{
			Provider: "binance",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var ticker model.BinanceTicker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		c.logger.Warn("Failed to decode Binance ticker", zap.Error(err), zap.String("symbol", symbol))
		return nil, &TransientError{Provider: "binance", Err: fmt.Errorf("decode ticker: %w", err)}
	}

	snapshot, err := tickerToSnapshot(symbol, ticker)
	if err != nil {
		c.logger.Warn("Malformed Binance ticker payload", zap.Error(err), zap.String("symbol", symbol))
		return nil, &TransientError{Provider: "binance", Err: err}
	}

	return snapshot, nil
}

// tickerToSnapshot parses the decimal-string fields of a ticker. Prices go
// straight into decimals, never through a float.
func tickerToSnapshot(symbol string, t model.BinanceTicker) (*model.PriceSnapshot, error) {
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("parse lastPrice %q: %w", t.LastPrice, err)
	}
	volume, err := decimal.NewFromString(t.Volume)
	if err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", t.Volume, err)
	}
	change, err := decimal.NewFromString(t.PriceChangePercent)
	if err != nil {
		return nil, fmt.Errorf("parse priceChangePercent %q: %w", t.PriceChangePercent, err)
	}
	high, err := decimal.NewFromString(t.HighPrice)
	if err != nil {
		return nil, fmt.Errorf("parse highPrice %q: %w", t.HighPrice, err)
	}
	low, err := decimal.NewFromString(t.LowPrice)
	if err != nil {
		return nil, fmt.Errorf("parse lowPrice %q: %w", t.LowPrice, err)
	}

	return &model.PriceSnapshot{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		Volume:    volume,
		Change24h: change,
		High24h:   high,
		Low24h:    low,
		Timestamp: time.Now().UTC(),
		Source:    model.SourceBinance,
	}, nil
}

// FetchKlines retrieves historical candle data for a symbol and interval
func (c *BinanceClient) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > MaxKlinesLimit {
		limit = MaxKlinesLimit
	}

	params := url.Values{}
	params.Add("symbol", strings.ToUpper(symbol)+quoteAsset)
	params.Add("interval", interval)
	params.Add("limit", strconv.Itoa(limit))

	reqURL := c.baseURL + "/klines?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: "binance", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("binance: %q: %w", symbol, ErrSymbolNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Warn("Binance API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return nil, &TransientError{
			Provider: "binance",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var rawKlines []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawKlines); err != nil {
		return nil, &TransientError{Provider: "binance", Err: fmt.Errorf("decode klines: %w", err)}
	}

	candles := make([]model.Candle, 0, len(rawKlines))
	for i, raw := range rawKlines {
		candle, err := parseKline(raw)
		if err != nil {
			c.logger.Warn("Skipping malformed kline",
				zap.Int("index", i),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseKline converts one raw [openTime, o, h, l, c, v, closeTime, ...]
// array into a Candle
func parseKline(raw json.RawMessage) (model.Candle, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Candle{}, err
	}
	if len(fields) < 7 {
		return model.Candle{}, fmt.Errorf("kline has %d fields, want at least 7", len(fields))
	}

	var openMs, closeMs int64
	if err := json.Unmarshal(fields[0], &openMs); err != nil {
		return model.Candle{}, fmt.Errorf("parse open time: %w", err)
	}
	if err := json.Unmarshal(fields[6], &closeMs); err != nil {
		return model.Candle{}, fmt.Errorf("parse close time: %w", err)
	}

	names := []string{"open", "high", "low", "close", "volume"}
	values := make([]decimal.Decimal, len(names))
	for i, name := range names {
		var s string
		if err := json.Unmarshal(fields[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("parse %s: %w", name, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse %s %q: %w", name, s, err)
		}
		values[i] = d
	}

	return model.Candle{
		OpenTime:  time.UnixMilli(openMs),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(closeMs),
	}, nil
}
