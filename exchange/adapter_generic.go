package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"priceguard/logger"
	"priceguard/metrics"
	"priceguard/xerr"
)

const (
	lastPriceTTL     = 2 * time.Second
	activeSymbolsTTL = time.Hour
)

type cachedPrice struct {
	price float64
	at    time.Time
}

type cachedSymbolSet struct {
	set map[string]struct{}
	at  time.Time
}

// parsedCandleMsg is the venue-agnostic shape a hook's ParseMessage
// extracts from a raw websocket frame.
type parsedCandleMsg struct {
	Symbol   string
	Market   Market
	Interval string
	Candle   Candle
}

// venueHooks isolates everything that differs between exchanges: wire
// framing, response shapes, and native symbol/interval spelling. One
// genericAdapter, configured by hooks, backs every per-venue adapter,
// rather than a switch on exchange name scattered through every method.
type venueHooks struct {
	RESTBaseURL       string
	RequestsPerSecond float64
	WSURL             func(market Market) string

	FetchTicker        func(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error)
	FetchKlines        func(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error)
	FetchActiveSymbols func(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error)

	SubscribeFrame   func(market Market, symbol, interval string) interface{}
	UnsubscribeFrame func(market Market, symbol, interval string) interface{}
	// ParseMessage decodes a raw frame from the connection opened for market.
	// Venues whose wire format carries its own market indicator may ignore
	// the argument; venues that don't (most of them: a kline push frame
	// rarely repeats which of the two symbol-disjoint connections it came
	// from) must stamp it onto the result themselves, since the two
	// per-market connections share this callback.
	ParseMessage func(market Market, raw []byte) (parsedCandleMsg, bool)
}

// genericAdapter implements the Adapter contract once; per-venue files
// supply venueHooks and a constructor.
type genericAdapter struct {
	name  string
	hooks venueHooks
	rest  *restClient
	sink  Sink

	wsMu sync.Mutex
	ws   map[Market]*wsConn
	refs *refCounter

	priceMu    sync.RWMutex
	priceCache map[Market]map[string]cachedPrice

	symMu    sync.RWMutex
	symCache map[Market]cachedSymbolSet
}

func newGenericAdapter(name string, hooks venueHooks, sink Sink) *genericAdapter {
	return &genericAdapter{
		name:       name,
		hooks:      hooks,
		rest:       newRESTClient(name, hooks.RESTBaseURL, hooks.RequestsPerSecond),
		sink:       sink,
		ws:         make(map[Market]*wsConn),
		refs:       newRefCounter(),
		priceCache: make(map[Market]map[string]cachedPrice),
		symCache:   make(map[Market]cachedSymbolSet),
	}
}

func (a *genericAdapter) Name() string { return a.name }

func (a *genericAdapter) Normalize(symbol string) string { return Normalize(symbol) }

func (a *genericAdapter) LastPrices(ctx context.Context, symbols []string, market Market, opts LastPricesOptions) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var missing []string

	a.priceMu.RLock()
	cache := a.priceCache[market]
	now := time.Now()
	for _, s := range symbols {
		cs := Normalize(s)
		if cp, ok := cache[cs]; ok && now.Sub(cp.at) < lastPriceTTL {
			out[cs] = cp.price
		} else {
			missing = append(missing, cs)
		}
	}
	a.priceMu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	for _, s := range missing {
		t, err := a.hooks.FetchTicker(ctx, a, market, s)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			continue
		}
		out[s] = t.LastPrice
		a.storePrice(market, s, t.LastPrice)
	}
	return out, nil
}

func (a *genericAdapter) storePrice(market Market, symbol string, price float64) {
	a.priceMu.Lock()
	defer a.priceMu.Unlock()
	if a.priceCache[market] == nil {
		a.priceCache[market] = make(map[string]cachedPrice)
	}
	a.priceCache[market][symbol] = cachedPrice{price: price, at: time.Now()}
}

func (a *genericAdapter) Ticker(ctx context.Context, canonicalSymbol string, market Market) (Ticker, error) {
	t, err := a.hooks.FetchTicker(ctx, a, market, canonicalSymbol)
	if err != nil {
		return Ticker{}, err
	}
	a.storePrice(market, canonicalSymbol, t.LastPrice)
	return t, nil
}

func (a *genericAdapter) ActiveSymbols(ctx context.Context, market Market) (map[string]struct{}, error) {
	a.symMu.RLock()
	cs, ok := a.symCache[market]
	a.symMu.RUnlock()
	if ok && time.Since(cs.at) < activeSymbolsTTL {
		return cs.set, nil
	}

	set, err := a.hooks.FetchActiveSymbols(ctx, a, market)
	if err != nil {
		if ok {
			return cs.set, nil // serve stale rather than fail a ranking scan
		}
		return nil, err
	}

	a.symMu.Lock()
	a.symCache[market] = cachedSymbolSet{set: set, at: time.Now()}
	a.symMu.Unlock()
	return set, nil
}

func (a *genericAdapter) Klines(ctx context.Context, symbol string, market Market, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if n, ok := SupportedSubMinuteIntervals[interval]; ok {
		source, err := a.hooks.FetchKlines(ctx, a, market, symbol, "1m", limit, endBefore)
		if err != nil {
			return nil, err
		}
		out := make([]Candle, 0, len(source)*60/n)
		for _, c := range source {
			out = append(out, Resample1m(c, n)...)
		}
		return out, nil
	}
	return a.hooks.FetchKlines(ctx, a, market, symbol, interval, limit, endBefore)
}

func (a *genericAdapter) streamKeyFor(symbol string, market Market, interval string) streamKey {
	return streamKey{Symbol: Normalize(symbol), Market: market, Interval: interval}
}

func (a *genericAdapter) wsFor(market Market) *wsConn {
	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	if c, ok := a.ws[market]; ok {
		return c
	}
	c := newWSConn(a.name, a.hooks.WSURL(market), func(raw []byte) {
		a.onMessage(market, raw)
	}, func(conn *wsConn) {
		a.resubscribeMarket(conn, market)
	})
	c.Start()
	a.ws[market] = c
	return c
}

func (a *genericAdapter) resubscribeMarket(conn *wsConn, market Market) {
	for _, k := range a.refs.snapshot() {
		if k.Market != market {
			continue
		}
		frame := a.hooks.SubscribeFrame(market, k.Symbol, k.Interval)
		if err := conn.WriteJSON(frame); err != nil {
			logger.Named("exchange." + a.name).Warn().Err(err).Str("symbol", k.Symbol).Msg("resubscribe failed")
		}
	}
}

func (a *genericAdapter) SubscribeKline(symbol string, market Market, interval string) error {
	k := a.streamKeyFor(symbol, market, interval)
	conn := a.wsFor(market)
	if !a.refs.inc(k) {
		return nil
	}
	frame := a.hooks.SubscribeFrame(market, k.Symbol, interval)
	if err := conn.WriteJSON(frame); err != nil {
		a.refs.dec(k)
		return xerr.Wrap(xerr.KindUpstreamUnavailable, fmt.Sprintf("%s: subscribe failed", a.name), err)
	}
	return nil
}

func (a *genericAdapter) UnsubscribeKline(symbol string, market Market, interval string) error {
	k := a.streamKeyFor(symbol, market, interval)
	if !a.refs.dec(k) {
		return nil
	}
	a.wsMu.Lock()
	conn, ok := a.ws[market]
	a.wsMu.Unlock()
	if !ok {
		return nil
	}
	frame := a.hooks.UnsubscribeFrame(market, k.Symbol, interval)
	return conn.WriteJSON(frame)
}

func (a *genericAdapter) onMessage(market Market, raw []byte) {
	msg, ok := a.hooks.ParseMessage(market, raw)
	if !ok {
		return
	}
	metrics.RecordMarketDataLag(a.name, msg.Symbol, msg.Candle.Time*1000)
	if a.sink != nil {
		a.sink(a.name, msg.Symbol, msg.Interval, msg.Market, msg.Candle)
	}
}

func (a *genericAdapter) Close() error {
	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	var firstErr error
	for _, c := range a.ws {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// decodeJSON is a small convenience used by every venue's Parse* hook.
func decodeJSON(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
