package kline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceguard/exchange"
)

// fakeAdapter implements exchange.Adapter, counting subscribe/unsubscribe
// calls without touching a socket.
type fakeAdapter struct {
	name         string
	mu           sync.Mutex
	subscribeN   int
	unsubscribeN int
	subscribeErr error
}

func newFullFakeAdapter(name string) *fakeAdapter { return &fakeAdapter{name: name} }

func (f *fakeAdapter) Name() string              { return f.name }
func (f *fakeAdapter) Normalize(s string) string { return exchange.Normalize(s) }
func (f *fakeAdapter) Close() error              { return nil }

func (f *fakeAdapter) LastPrices(ctx context.Context, symbols []string, market exchange.Market, opts exchange.LastPricesOptions) (map[string]float64, error) {
	return nil, nil
}

func (f *fakeAdapter) Ticker(ctx context.Context, symbol string, market exchange.Market) (exchange.Ticker, error) {
	return exchange.Ticker{}, nil
}

func (f *fakeAdapter) ActiveSymbols(ctx context.Context, market exchange.Market) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeAdapter) Klines(ctx context.Context, symbol string, market exchange.Market, interval string, limit int, endBefore *time.Time) ([]exchange.Candle, error) {
	return nil, nil
}

func (f *fakeAdapter) SubscribeKline(symbol string, market exchange.Market, interval string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribeN++
	return nil
}

func (f *fakeAdapter) UnsubscribeKline(symbol string, market exchange.Market, interval string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeN++
	return nil
}

func (f *fakeAdapter) counts() (sub, unsub int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeN, f.unsubscribeN
}

type stubBroadcaster struct {
	mu      sync.Mutex
	updates []Update
	errs    []string
}

func (s *stubBroadcaster) BroadcastKline(clientIDs []string, update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range clientIDs {
		s.updates = append(s.updates, update)
	}
}

func (s *stubBroadcaster) SendKlineError(clientID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, message)
}

func TestSubscribe_FirstSubscriberTriggersUpstreamSubscribe(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("binance")
	reg.Register(a)
	m := NewManager(reg)

	key := Key{Exchange: "binance", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketFutures}

	require.NoError(t, m.Subscribe("client1", key))
	require.NoError(t, m.Subscribe("client2", key))
	require.NoError(t, m.Subscribe("client3", key))

	sub, unsub := a.counts()
	assert.Equal(t, 1, sub, "exactly one upstream subscribe regardless of subscriber count")
	assert.Equal(t, 0, unsub)
	assert.Equal(t, 3, m.SubscriberCount(key))
}

func TestUnsubscribe_LastUnsubscriberTriggersUpstreamUnsubscribe(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("bybit")
	reg.Register(a)
	m := NewManager(reg)

	key := Key{Exchange: "bybit", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketFutures}

	require.NoError(t, m.Subscribe("c1", key))
	require.NoError(t, m.Subscribe("c2", key))
	require.NoError(t, m.Subscribe("c3", key))

	m.Unsubscribe("c1", key)
	sub, unsub := a.counts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 0, unsub, "remains subscribed while 2 clients are left")
	assert.Equal(t, 2, m.SubscriberCount(key))

	m.Unsubscribe("c2", key)
	m.Unsubscribe("c3", key)
	sub, unsub = a.counts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 1, unsub, "exactly one unsubscribe once the last client leaves")
	assert.Equal(t, 0, m.SubscriberCount(key))
}

func TestSubscribeUnsubscribeResubscribe_DoesNotLeakRefcount(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("okx")
	reg.Register(a)
	m := NewManager(reg)
	key := Key{Exchange: "okx", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketSpot}

	require.NoError(t, m.Subscribe("c1", key))
	m.Unsubscribe("c1", key)
	require.NoError(t, m.Subscribe("c1", key))

	sub, unsub := a.counts()
	assert.Equal(t, 2, sub)
	assert.Equal(t, 1, unsub)
	assert.Equal(t, 1, m.SubscriberCount(key))
}

func TestOnClientDisconnect_UnsubscribesEveryKey(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("gate")
	reg.Register(a)
	m := NewManager(reg)

	k1 := Key{Exchange: "gate", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketSpot}
	k2 := Key{Exchange: "gate", Symbol: "ETHUSDT", Interval: "1m", Market: exchange.MarketSpot}
	require.NoError(t, m.Subscribe("c1", k1))
	require.NoError(t, m.Subscribe("c1", k2))
	assert.Equal(t, 2, m.ClientKeyCount("c1"))

	m.OnClientDisconnect("c1")
	assert.Equal(t, 0, m.ClientKeyCount("c1"))
	assert.Equal(t, 0, m.SubscriberCount(k1))
	assert.Equal(t, 0, m.SubscriberCount(k2))
}

func TestSubscribe_UpstreamFailureRollsBackIndices(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("mexc")
	a.subscribeErr = errors.New("upstream rejected subscription")
	reg.Register(a)
	m := NewManager(reg)
	key := Key{Exchange: "mexc", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketSpot}

	err := m.Subscribe("c1", key)
	require.Error(t, err)
	assert.Equal(t, 0, m.SubscriberCount(key))
	assert.Equal(t, 0, m.ClientKeyCount("c1"))
}

func TestOnCandle_DropsWhenNoSubscribers(t *testing.T) {
	reg := exchange.NewRegistry()
	m := NewManager(reg)
	b := &stubBroadcaster{}
	m.SetBroadcaster(b)

	m.OnCandle("binance", "BTCUSDT", "1m", exchange.MarketFutures, exchange.Candle{Time: 1})

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.updates)
}

func TestOnCandle_BroadcastsToAllCurrentSubscribers(t *testing.T) {
	reg := exchange.NewRegistry()
	a := newFullFakeAdapter("binance")
	reg.Register(a)
	m := NewManager(reg)
	b := &stubBroadcaster{}
	m.SetBroadcaster(b)

	key := Key{Exchange: "binance", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketFutures}
	require.NoError(t, m.Subscribe("c1", key))
	require.NoError(t, m.Subscribe("c2", key))

	m.OnCandle("binance", "BTCUSDT", "1m", exchange.MarketFutures, exchange.Candle{Time: 100, Close: 101})

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Len(t, b.updates, 2)
}
