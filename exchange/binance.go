package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"priceguard/xerr"
)

// binanceAdapter wires the official adshao/go-binance/v2 SDK for REST
// (ticker, klines, exchange info) while reusing genericAdapter's wsConn
// scaffolding for the kline websocket: a combined-stream SUBSCRIBE/
// UNSUBSCRIBE frame over the raw websocket, since the SDK's own streaming
// helpers don't expose per-connection subscribe/unsubscribe control.
type binanceAdapter struct {
	*genericAdapter
	spot    *binance.Client
	futures *futures.Client
}

// NewBinance builds the binance.* adapter. sink receives every normalized
// candle event this adapter's WS streams produce.
func NewBinance(sink Sink) Adapter {
	b := &binanceAdapter{
		spot:    binance.NewClient("", ""),
		futures: futures.NewClient("", ""),
	}
	hooks := venueHooks{
		RESTBaseURL:       "https://api.binance.com",
		RequestsPerSecond: 10,
		WSURL: func(market Market) string {
			if market == MarketFutures {
				return "wss://fstream.binance.com/ws"
			}
			return "wss://stream.binance.com:9443/ws"
		},
		FetchTicker:        b.fetchTicker,
		FetchKlines:        b.fetchKlines,
		FetchActiveSymbols: b.fetchActiveSymbols,
		SubscribeFrame:     binanceSubscribeFrame(true),
		UnsubscribeFrame:   binanceSubscribeFrame(false),
		ParseMessage:       binanceParseMessage,
	}
	b.genericAdapter = newGenericAdapter("binance", hooks, sink)
	return b
}

func binanceStreamName(symbol string, interval string) string {
	return fmt.Sprintf("%s@kline_%s", lower(symbol), interval)
}

func binanceSubscribeFrame(subscribe bool) func(Market, string, string) interface{} {
	return func(_ Market, symbol, interval string) interface{} {
		method := "SUBSCRIBE"
		if !subscribe {
			method = "UNSUBSCRIBE"
		}
		return map[string]interface{}{
			"method": method,
			"params": []string{binanceStreamName(symbol, interval)},
			"id":     time.Now().UnixNano() % 1_000_000,
		}
	}
}

type binanceKlineWSPayload struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  struct {
			StartTime int64  `json:"t"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			Close     string `json:"c"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Volume    string `json:"v"`
			Turnover  string `json:"q"`
			IsFinal   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
	// raw (non-combined-stream) shape, same fields at top level
	EventSymbol string `json:"s"`
	Kline       *struct {
		StartTime int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Turnover  string `json:"q"`
		IsFinal   bool   `json:"x"`
	} `json:"k"`
}

func binanceParseMessage(market Market, raw []byte) (parsedCandleMsg, bool) {
	var p binanceKlineWSPayload
	if err := decodeJSON(raw, &p); err != nil {
		return parsedCandleMsg{}, false
	}

	symbol := p.Data.Symbol
	k := p.Kline
	if symbol == "" {
		symbol = p.EventSymbol
	}
	if k == nil && p.Data.Kline.StartTime != 0 {
		k = &p.Data.Kline
	}
	if symbol == "" || k == nil {
		return parsedCandleMsg{}, false
	}

	// neither the spot nor the futures kline push frame carries a market
	// field of its own; the two streams are symbol-disjoint by connection,
	// so the market is whichever connection delivered this frame.
	return parsedCandleMsg{
		Symbol:   Normalize(symbol),
		Market:   market,
		Interval: k.Interval,
		Candle: Candle{
			Time:     k.StartTime / 1000,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
			Turnover: parseFloat(k.Turnover),
			Closed:   k.IsFinal,
		},
	}, true
}

func (b *binanceAdapter) fetchTicker(ctx context.Context, _ *genericAdapter, market Market, symbol string) (Ticker, error) {
	sym := binanceNativeSymbol(symbol)
	if market == MarketFutures {
		stats, err := b.futures.NewListPriceChangeStatsService().Symbol(sym).Do(ctx)
		if err != nil {
			return Ticker{}, xerr.UpstreamUnavailable(0, "binance: futures ticker", err)
		}
		if len(stats) == 0 {
			return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "binance: no ticker for "+symbol)
		}
		s := stats[0]
		return Ticker{
			Symbol:                symbol,
			LastPrice:             parseFloat(s.LastPrice),
			HighPrice24h:          parseFloat(s.HighPrice),
			LowPrice24h:           parseFloat(s.LowPrice),
			PriceChangePercent24h: parseFloat(s.PriceChangePercent),
			QuoteVolume:           parseFloat(s.QuoteVolume),
		}, nil
	}

	stats, err := b.spot.NewListPriceChangeStatsService().Symbol(sym).Do(ctx)
	if err != nil {
		return Ticker{}, xerr.UpstreamUnavailable(0, "binance: spot ticker", err)
	}
	if len(stats) == 0 {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "binance: no ticker for "+symbol)
	}
	s := stats[0]
	return Ticker{
		Symbol:                symbol,
		LastPrice:             parseFloat(s.LastPrice),
		HighPrice24h:          parseFloat(s.HighPrice),
		LowPrice24h:           parseFloat(s.LowPrice),
		PriceChangePercent24h: parseFloat(s.PriceChangePercent),
		QuoteVolume:           parseFloat(s.QuoteVolume),
	}, nil
}

func (b *binanceAdapter) fetchKlines(ctx context.Context, _ *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	sym := binanceNativeSymbol(symbol)
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	if market == MarketFutures {
		svc := b.futures.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit)
		if endBefore != nil {
			svc = svc.EndTime(endBefore.UnixMilli())
		}
		raw, err := svc.Do(ctx)
		if err != nil {
			return nil, xerr.UpstreamUnavailable(0, "binance: futures klines", err)
		}
		out := make([]Candle, 0, len(raw))
		for _, k := range raw {
			out = append(out, Candle{
				Time:     k.OpenTime / 1000,
				Open:     parseFloat(k.Open),
				High:     parseFloat(k.High),
				Low:      parseFloat(k.Low),
				Close:    parseFloat(k.Close),
				Volume:   parseFloat(k.Volume),
				Turnover: parseFloat(k.QuoteAssetVolume),
				Closed:   true,
			})
		}
		return out, nil
	}

	svc := b.spot.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit)
	if endBefore != nil {
		svc = svc.EndTime(endBefore.UnixMilli())
	}
	raw, err := svc.Do(ctx)
	if err != nil {
		return nil, xerr.UpstreamUnavailable(0, "binance: spot klines", err)
	}
	out := make([]Candle, 0, len(raw))
	for _, k := range raw {
		out = append(out, Candle{
			Time:     k.OpenTime / 1000,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
			Turnover: parseFloat(k.QuoteAssetVolume),
			Closed:   true,
		})
	}
	return out, nil
}

func (b *binanceAdapter) fetchActiveSymbols(ctx context.Context, _ *genericAdapter, market Market) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if market == MarketFutures {
		info, err := b.futures.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, xerr.UpstreamUnavailable(0, "binance: futures exchangeInfo", err)
		}
		for _, s := range info.Symbols {
			if s.QuoteAsset == "USDT" && s.Status == "TRADING" {
				out[Normalize(s.Symbol)] = struct{}{}
			}
		}
		return out, nil
	}

	info, err := b.spot.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, xerr.UpstreamUnavailable(0, "binance: spot exchangeInfo", err)
	}
	for _, s := range info.Symbols {
		if s.QuoteAsset == "USDT" && s.Status == "TRADING" {
			out[Normalize(s.Symbol)] = struct{}{}
		}
	}
	return out, nil
}

func binanceNativeSymbol(canonicalSymbol string) string {
	return canonicalSymbol
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
