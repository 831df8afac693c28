package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const CoinGeckoAPIBaseURL = "https://api.coingecko.com/api/v3"

// coinGeckoIDs maps tickers to CoinGecko coin ids. CoinGecko addresses coins
// by id, not ticker, so only mapped symbols can be resolved here.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"XRP":   "ripple",
	"LINK":  "chainlink",
	"XLM":   "stellar",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"DOGE":  "dogecoin",
	"SOL":   "solana",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"SAND":  "the-sandbox",
	"AAVE":  "aave",
	"PAXG":  "pax-gold",
	"IMX":   "immutable-x",
}

// CoinGeckoClient handles communication with the CoinGecko API. It is the
// secondary price source consulted when Binance fails.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCoinGeckoClient creates a new CoinGecko API client
func NewCoinGeckoClient(baseURL string, timeout time.Duration, logger *zap.Logger) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = CoinGeckoAPIBaseURL
	}
	return &CoinGeckoClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name identifies this source in logs and snapshots
func (c *CoinGeckoClient) Name() model.Source {
	return model.SourceCoinGecko
}

// FetchTicker retrieves the current price for a symbol and normalizes it
// into a PriceSnapshot. CoinGecko's simple price endpoint carries no 24h
// high/low, those fields stay zero.
func (c *CoinGeckoClient) FetchTicker(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	coinID, ok := coinGeckoIDs[strings.ToUpper(symbol)]
	if !ok {
		c.logger.Debug("Symbol not in CoinGecko mapping", zap.String("symbol", symbol))
		return nil, fmt.Errorf("coingecko: %q: %w", symbol, ErrSymbolNotFound)
	}

	params := url.Values{}
	params.Add("ids", coinID)
	params.Add("vs_currencies", "usd")
	params.Add("include_24hr_change", "true")
	params.Add("include_24hr_vol", "true")
	params.Add("include_last_updated_at", "true")

	reqURL := c.baseURL + "/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to fetch price from CoinGecko",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, &TransientError{Provider: "coingecko", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Warn("CoinGecko API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("symbol", symbol),
			zap.String("response", string(bodyBytes)))
		return nil, &TransientError{
			Provider: "coingecko",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var data map[string]model.CoinGeckoPrice
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.logger.Warn("Failed to decode CoinGecko response", zap.Error(err), zap.String("symbol", symbol))
		return nil, &TransientError{Provider: "coingecko", Err: fmt.Errorf("decode price: %w", err)}
	}

	price, ok := data[coinID]
	if !ok || price.USD == nil {
		return nil, fmt.Errorf("coingecko: %q missing from response: %w", symbol, ErrSymbolNotFound)
	}

	snapshot := &model.PriceSnapshot{
		Symbol:    strings.ToUpper(symbol),
		Price:     *price.USD,
		Volume:    decimal.Zero,
		Change24h: decimal.Zero,
		High24h:   decimal.Zero,
		Low24h:    decimal.Zero,
		Timestamp: time.Now().UTC(),
		Source:    model.SourceCoinGecko,
	}
	if price.USD24hVol != nil {
		snapshot.Volume = *price.USD24hVol
	}
	if price.USD24hChange != nil {
		snapshot.Change24h = *price.USD24hChange
	}
	if price.LastUpdatedAt != nil {
		snapshot.Timestamp = time.Unix(*price.LastUpdatedAt, 0).UTC()
	}

	return snapshot, nil
}
