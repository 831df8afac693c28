package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeSource is a scripted PriceSource that counts its calls.
type fakeSource struct {
	name     model.Source
	calls    int32
	fetch    func(symbol string) (*model.PriceSnapshot, error)
}

func (f *fakeSource) Name() model.Source { return f.name }

func (f *fakeSource) FetchTicker(ctx context.Context, symbol string) (*model.PriceSnapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fetch(symbol)
}

func (f *fakeSource) callCount() int32 { return atomic.LoadInt32(&f.calls) }

func snapshotFor(symbol string, source model.Source, price string) *model.PriceSnapshot {
	return &model.PriceSnapshot{
		Symbol: symbol,
		Price:  decimal.RequireFromString(price),
		Source: source,
	}
}

func TestRouter_Resolve_PrimarySuccessShortCircuits(t *testing.T) {
	primary := &fakeSource{
		name: model.SourceBinance,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return snapshotFor(symbol, model.SourceBinance, "50000"), nil
		},
	}
	secondary := &fakeSource{
		name: model.SourceCoinGecko,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			t.Error("secondary must not be consulted when the primary succeeds")
			return nil, ErrUnavailable
		},
	}

	r := NewRouter(primary, secondary, zap.NewNop())

	snapshot, err := r.Resolve(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if snapshot.Source != model.SourceBinance {
		t.Errorf("Source = %q, want binance", snapshot.Source)
	}
	if n := secondary.callCount(); n != 0 {
		t.Errorf("secondary called %d times, want 0", n)
	}
}

func TestRouter_Resolve_FallsBackOnTransientFailure(t *testing.T) {
	primary := &fakeSource{
		name: model.SourceBinance,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return nil, &TransientError{Provider: "binance", Status: 500, Err: errors.New("boom")}
		},
	}
	secondary := &fakeSource{
		name: model.SourceCoinGecko,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return snapshotFor(symbol, model.SourceCoinGecko, "49999"), nil
		},
	}

	r := NewRouter(primary, secondary, zap.NewNop())

	snapshot, err := r.Resolve(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if snapshot.Source != model.SourceCoinGecko {
		t.Errorf("Source = %q, want coingecko", snapshot.Source)
	}
	if n := secondary.callCount(); n != 1 {
		t.Errorf("secondary called %d times, want exactly 1", n)
	}
}

func TestRouter_Resolve_FallsBackOnUnknownSymbol(t *testing.T) {
	primary := &fakeSource{
		name: model.SourceBinance,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return nil, fmt.Errorf("binance: %q: %w", symbol, ErrSymbolNotFound)
		},
	}
	secondary := &fakeSource{
		name: model.SourceCoinGecko,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return snapshotFor(symbol, model.SourceCoinGecko, "1.23"), nil
		},
	}

	r := NewRouter(primary, secondary, zap.NewNop())

	snapshot, err := r.Resolve(context.Background(), "SAND")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if snapshot.Source != model.SourceCoinGecko {
		t.Errorf("Source = %q, want coingecko", snapshot.Source)
	}
}

func TestRouter_Resolve_BothFail(t *testing.T) {
	primary := &fakeSource{
		name: model.SourceBinance,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return nil, &TransientError{Provider: "binance", Err: errors.New("down")}
		},
	}
	secondary := &fakeSource{
		name: model.SourceCoinGecko,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return nil, &TransientError{Provider: "coingecko", Err: errors.New("down too")}
		},
	}

	r := NewRouter(primary, secondary, zap.NewNop())

	_, err := r.Resolve(context.Background(), "BTC")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if n := primary.callCount(); n != 1 {
		t.Errorf("primary called %d times, want 1", n)
	}
	if n := secondary.callCount(); n != 1 {
		t.Errorf("secondary called %d times, want 1", n)
	}
}

func TestRouter_ResolveBatch_PartialResults(t *testing.T) {
	primary := &fakeSource{
		name: model.SourceBinance,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			if symbol == "ETH" {
				return nil, &TransientError{Provider: "binance", Err: errors.New("down")}
			}
			return snapshotFor(symbol, model.SourceBinance, "100"), nil
		},
	}
	secondary := &fakeSource{
		name: model.SourceCoinGecko,
		fetch: func(symbol string) (*model.PriceSnapshot, error) {
			return nil, &TransientError{Provider: "coingecko", Err: errors.New("down")}
		},
	}

	r := NewRouter(primary, secondary, zap.NewNop())

	snapshots := r.ResolveBatch(context.Background(), []string{"BTC", "ETH", "ADA"})

	var symbols []string
	for _, s := range snapshots {
		symbols = append(symbols, s.Symbol)
	}
	sort.Strings(symbols)

	if len(symbols) != 2 || symbols[0] != "ADA" || symbols[1] != "BTC" {
		t.Errorf("resolved symbols = %v, want [ADA BTC] (ETH dropped, siblings kept)", symbols)
	}
}
