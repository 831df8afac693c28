package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies the upstream provider a snapshot came from
type Source string

const (
	SourceBinance   Source = "binance"
	SourceCoinGecko Source = "coingecko"
)

// TriggerKind classifies which bound an alert crossed when it fired
type TriggerKind string

const (
	TriggerBelowMin TriggerKind = "BELOW_MIN"
	TriggerAboveMax TriggerKind = "ABOVE_MAX"
)

// PriceSnapshot is one normalized price sample for a symbol at a point in
// time. It is produced once per symbol per polling cycle and never mutated.
type PriceSnapshot struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Change24h decimal.Decimal `json:"change24h"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
	Timestamp time.Time       `json:"timestamp"`
	Source    Source          `json:"source"`
}

// Alert is a user-defined price range watch. MinPrice < MaxPrice holds for
// every active alert; once triggered the alert is permanently inactive.
type Alert struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	UserID         uuid.UUID        `db:"user_id" json:"userId"`
	Symbol         string           `db:"symbol" json:"symbol"`
	MinPrice       decimal.Decimal  `db:"min_price" json:"minPrice"`
	MaxPrice       decimal.Decimal  `db:"max_price" json:"maxPrice"`
	IsActive       bool             `db:"is_active" json:"isActive"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	TriggeredAt    *time.Time       `db:"triggered_at" json:"triggeredAt,omitempty"`
	TriggeredPrice *decimal.Decimal `db:"triggered_price" json:"triggeredPrice,omitempty"`
	TriggeredKind  *TriggerKind     `db:"triggered_kind" json:"triggeredKind,omitempty"`
}

// Triggered reports whether the alert has already fired
func (a *Alert) Triggered() bool {
	return a.TriggeredAt != nil
}

// PriceHistory is one persisted price sample. UserID is nil for samples
// recorded by the polling loop and set for samples a user saved explicitly.
type PriceHistory struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"userId,omitempty"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Volume    decimal.Decimal `db:"volume" json:"volume"`
	Change24h decimal.Decimal `db:"change_24h" json:"change24h"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// PriceUpdate is the stable outbound payload delivered to websocket
// subscribers, identical regardless of which provider supplied the data
type PriceUpdate struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Change24h decimal.Decimal `json:"change24h"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
	Timestamp time.Time       `json:"timestamp"`
}

// UpdateFromSnapshot builds the outbound payload for a snapshot
func UpdateFromSnapshot(s PriceSnapshot) PriceUpdate {
	return PriceUpdate{
		Symbol:    s.Symbol,
		Price:     s.Price,
		Volume:    s.Volume,
		Change24h: s.Change24h,
		High24h:   s.High24h,
		Low24h:    s.Low24h,
		Timestamp: s.Timestamp,
	}
}

// TriggerEvent is the message published to Kafka when an alert fires
type TriggerEvent struct {
	AlertID     uuid.UUID       `json:"alertId"`
	UserID      uuid.UUID       `json:"userId"`
	Symbol      string          `json:"symbol"`
	Kind        TriggerKind     `json:"kind"`
	Price       decimal.Decimal `json:"price"`
	TriggeredAt time.Time       `json:"triggeredAt"`
}

// Candle is one historical OHLCV bar from a provider's candle endpoint
type Candle struct {
	OpenTime  time.Time       `json:"openTime"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime time.Time       `json:"closeTime"`
}
