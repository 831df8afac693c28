package model

import "github.com/shopspring/decimal"

// BinanceTicker is the shape of Binance's /ticker/24hr response. Numeric
// fields arrive as decimal strings and are parsed without a float
// intermediate.
type BinanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// CoinGeckoPrice is one entry of CoinGecko's /simple/price response.
// decimal.Decimal unmarshals the JSON number literal exactly.
type CoinGeckoPrice struct {
	USD           *decimal.Decimal `json:"usd"`
	USD24hVol     *decimal.Decimal `json:"usd_24h_vol"`
	USD24hChange  *decimal.Decimal `json:"usd_24h_change"`
	LastUpdatedAt *int64           `json:"last_updated_at"`
}
