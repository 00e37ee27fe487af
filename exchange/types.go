// Package exchange implements the Exchange Adapter contract: a uniform
// interface across heterogeneous venues, generalized into a registry of six
// adapters behind one interface, each sharing the same connection and
// backoff plumbing while supplying its own wire framing and symbol
// spelling.
package exchange

import (
	"context"
	"time"
)

// Market distinguishes spot from futures (perpetual) order books.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// Candle is the normalized OHLCV bar.
type Candle struct {
	Time     int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Turnover float64 `json:"turnover,omitempty"`
	Closed   bool    `json:"closed"`
}

// Sink is the callback an adapter invokes for every candle event it
// produces, injected once at construction: the adapter holds the sink, and
// the manager holds no back-reference to the adapter, breaking what would
// otherwise be a construction-order cycle between the two.
type Sink func(exchangeName, canonicalSymbol, interval string, market Market, c Candle)

// Ticker is the minimal snapshot the Resolver needs for a direct
// single-symbol fetch.
type Ticker struct {
	Symbol               string
	LastPrice            float64
	HighPrice24h         float64
	LowPrice24h          float64
	PriceChangePercent24h float64
	QuoteVolume          float64
}

// LastPricesOptions configures Adapter.LastPrices.
type LastPricesOptions struct {
	// Strict requests a hard failure (UpstreamUnavailable) rather than a
	// partial map when the upstream cannot be reached.
	Strict bool
}

// Adapter is the uniform per-venue contract.
type Adapter interface {
	// Name is the registry key, e.g. "binance".
	Name() string

	// Normalize maps a venue-or-user symbol form to its canonical form.
	// Idempotent; returns "" if the input cannot be reasonably interpreted.
	Normalize(symbol string) string

	// LastPrices returns canonicalSymbol -> price for the requested symbols,
	// honoring a short-lived snapshot cache.
	LastPrices(ctx context.Context, symbols []string, market Market, opts LastPricesOptions) (map[string]float64, error)

	// Ticker performs a direct, cheap single-symbol fetch.
	Ticker(ctx context.Context, canonicalSymbol string, market Market) (Ticker, error)

	// ActiveSymbols returns the cached set of currently-traded USDT-quoted
	// instruments for market.
	ActiveSymbols(ctx context.Context, market Market) (map[string]struct{}, error)

	// Klines returns an ordered (oldest-first) sequence of candles,
	// synthesizing sub-minute intervals by deterministic resampling.
	Klines(ctx context.Context, symbol string, market Market, interval string, limit int, endBefore *time.Time) ([]Candle, error)

	// SubscribeKline/UnsubscribeKline are idempotent against an internal
	// per-stream reference count; only the 0->1 / 1->0 transition issues an
	// upstream (un)subscribe.
	SubscribeKline(symbol string, market Market, interval string) error
	UnsubscribeKline(symbol string, market Market, interval string) error

	// Close tears down all WS connections and background loops.
	Close() error
}

// Tolerance returns the per-value comparison tolerance used for crossing
// checks: max(|target|*1e-4, 1e-8), so a tiny target never collapses to a
// zero tolerance that would trigger on floating-point noise alone.
func Tolerance(target float64) float64 {
	t := target * 1e-4
	if t < 0 {
		t = -t
	}
	if t < 1e-8 {
		return 1e-8
	}
	return t
}
