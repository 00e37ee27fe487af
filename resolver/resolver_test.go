package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceguard/exchange"
	"priceguard/xerr"
)

type stubAdapter struct {
	name          string
	tickerPrices  map[string]float64
	tickerErr     error
	lastPrices    map[string]float64
	lastPricesErr error
}

func (s *stubAdapter) Name() string                   { return s.name }
func (s *stubAdapter) Normalize(sym string) string     { return exchange.Normalize(sym) }
func (s *stubAdapter) Close() error                   { return nil }

func (s *stubAdapter) Ticker(ctx context.Context, symbol string, market exchange.Market) (exchange.Ticker, error) {
	if s.tickerErr != nil {
		return exchange.Ticker{}, s.tickerErr
	}
	p, ok := s.tickerPrices[symbol]
	if !ok {
		return exchange.Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "no ticker")
	}
	return exchange.Ticker{Symbol: symbol, LastPrice: p}, nil
}

func (s *stubAdapter) LastPrices(ctx context.Context, symbols []string, market exchange.Market, opts exchange.LastPricesOptions) (map[string]float64, error) {
	if s.lastPricesErr != nil {
		return nil, s.lastPricesErr
	}
	out := make(map[string]float64)
	for _, sym := range symbols {
		if p, ok := s.lastPrices[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

func (s *stubAdapter) ActiveSymbols(ctx context.Context, market exchange.Market) (map[string]struct{}, error) {
	return nil, nil
}

func (s *stubAdapter) Klines(ctx context.Context, symbol string, market exchange.Market, interval string, limit int, endBefore *time.Time) ([]exchange.Candle, error) {
	return nil, nil
}

func (s *stubAdapter) SubscribeKline(symbol string, market exchange.Market, interval string) error {
	return nil
}

func (s *stubAdapter) UnsubscribeKline(symbol string, market exchange.Market, interval string) error {
	return nil
}

func TestResolve_DirectTickerHit(t *testing.T) {
	a := &stubAdapter{name: "binance", tickerPrices: map[string]float64{"BTCUSDT": 65000}}
	res, err := Resolve(context.Background(), a, exchange.MarketFutures, "btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, 65000.0, res.Price)
	assert.Equal(t, "BTCUSDT", res.ResolvedSymbol)
	assert.Equal(t, "binance", res.Source)
}

func TestResolve_FallsBackToLastPricesWhenTickerMissing(t *testing.T) {
	a := &stubAdapter{
		name:         "okx",
		tickerPrices: map[string]float64{},
		lastPrices:   map[string]float64{"BTCUSDT": 64000},
	}
	res, err := Resolve(context.Background(), a, exchange.MarketSpot, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64000.0, res.Price)
}

func TestResolve_UpstreamUnavailablePropagatesTypedError(t *testing.T) {
	a := &stubAdapter{
		name:          "bybit",
		tickerErr:     xerr.UpstreamUnavailable(503, "down", nil),
		lastPricesErr: xerr.UpstreamUnavailable(503, "down", nil),
	}
	_, err := Resolve(context.Background(), a, exchange.MarketFutures, "BTCUSDT")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindUpstreamUnavailable))
}

func TestResolve_UnresolvedWhenNothingMatches(t *testing.T) {
	a := &stubAdapter{name: "gate", tickerPrices: map[string]float64{}, lastPrices: map[string]float64{}}
	_, err := Resolve(context.Background(), a, exchange.MarketSpot, "BTCUSDT")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindSymbolUnresolved))
}

func TestResolve_RejectsNonPositivePrice(t *testing.T) {
	a := &stubAdapter{name: "mexc", tickerPrices: map[string]float64{"BTCUSDT": 0}, lastPrices: map[string]float64{"BTCUSDT": -5}}
	_, err := Resolve(context.Background(), a, exchange.MarketSpot, "BTCUSDT")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindSymbolUnresolved))
}

func TestCandidateSymbols_ExpandsQuoteAliases(t *testing.T) {
	cands := candidateSymbols("btc-usd")
	assert.Contains(t, cands, "BTCUSD")
	assert.Contains(t, cands, "BTCUSDT")
}

func TestResolveCrossExchange_TriesEachAdapterInTurn(t *testing.T) {
	reg := exchange.NewRegistry()
	reg.Register(&stubAdapter{name: "binance", tickerPrices: map[string]float64{}})
	reg.Register(&stubAdapter{name: "bybit", tickerPrices: map[string]float64{"BTCUSDT": 65500}})

	res, err := ResolveCrossExchange(context.Background(), reg, exchange.MarketFutures, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 65500.0, res.Price)
}
