package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"priceguard/xerr"
)

// NewBybit builds the bybit adapter: {"op":"subscribe","args":["kline.<interval>.<symbol>"]}
// websocket framing and the v5 REST response envelope ({retCode, retMsg, result}).
func NewBybit(sink Sink) Adapter {
	hooks := venueHooks{
		RESTBaseURL:       "https://api.bybit.com",
		RequestsPerSecond: 10,
		WSURL: func(market Market) string {
			if market == MarketFutures {
				return "wss://stream.bybit.com/v5/public/linear"
			}
			return "wss://stream.bybit.com/v5/public/spot"
		},
		FetchTicker:        bybitFetchTicker,
		FetchKlines:        bybitFetchKlines,
		FetchActiveSymbols: bybitFetchActiveSymbols,
		SubscribeFrame:     bybitFrame("subscribe"),
		UnsubscribeFrame:   bybitFrame("unsubscribe"),
		ParseMessage:       bybitParseMessage,
	}
	return newGenericAdapter("bybit", hooks, sink)
}

func bybitCategory(market Market) string {
	if market == MarketFutures {
		return "linear"
	}
	return "spot"
}

func bybitIntervalCode(interval string) string {
	switch interval {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	default:
		return interval
	}
}

func bybitFrame(op string) func(Market, string, string) interface{} {
	return func(_ Market, symbol, interval string) interface{} {
		return map[string]interface{}{
			"op":   op,
			"args": []string{fmt.Sprintf("kline.%s.%s", bybitIntervalCode(interval), symbol)},
		}
	}
}

type bybitKlineWSPayload struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start     int64  `json:"start"`
		Open      string `json:"open"`
		High      string `json:"high"`
		Low       string `json:"low"`
		Close     string `json:"close"`
		Volume    string `json:"volume"`
		Turnover  string `json:"turnover"`
		Confirm   bool   `json:"confirm"`
		Interval  string `json:"interval"`
	} `json:"data"`
}

func bybitParseMessage(market Market, raw []byte) (parsedCandleMsg, bool) {
	var p bybitKlineWSPayload
	if err := json.Unmarshal(raw, &p); err != nil || len(p.Data) == 0 || p.Topic == "" {
		return parsedCandleMsg{}, false
	}
	// topic shape: kline.<intervalCode>.<symbol>
	parts := splitSeparators2(p.Topic, '.')
	if len(parts) != 3 || parts[0] != "kline" {
		return parsedCandleMsg{}, false
	}
	intervalCode, symbol := parts[1], parts[2]

	// the topic string never repeats which of the two connections (spot vs
	// linear) sent it, so trust the market the frame arrived on.
	d := p.Data[0]
	return parsedCandleMsg{
		Symbol:   Normalize(symbol),
		Market:   market,
		Interval: bybitIntervalFromCode(intervalCode),
		Candle: Candle{
			Time:     d.Start / 1000,
			Open:     parseFloat(d.Open),
			High:     parseFloat(d.High),
			Low:      parseFloat(d.Low),
			Close:    parseFloat(d.Close),
			Volume:   parseFloat(d.Volume),
			Turnover: parseFloat(d.Turnover),
			Closed:   d.Confirm,
		},
	}, true
}

func bybitIntervalFromCode(code string) string {
	switch code {
	case "1":
		return "1m"
	case "5":
		return "5m"
	case "15":
		return "15m"
	case "30":
		return "30m"
	case "60":
		return "1h"
	case "240":
		return "4h"
	case "D":
		return "1d"
	default:
		return code
	}
}

func splitSeparators2(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

type bybitTickerResp struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol     string `json:"symbol"`
			LastPrice  string `json:"lastPrice"`
			HighPrice  string `json:"highPrice24h"`
			LowPrice   string `json:"lowPrice24h"`
			PricePct   string `json:"price24hPcnt"`
			Turnover24h string `json:"turnover24h"`
		} `json:"list"`
	} `json:"result"`
}

func bybitFetchTicker(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error) {
	body, err := a.rest.get(ctx, "/v5/market/tickers", map[string]string{
		"category": bybitCategory(market),
		"symbol":   symbol,
	})
	if err != nil {
		return Ticker{}, err
	}
	var resp bybitTickerResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return Ticker{}, xerr.Wrap(xerr.KindUpstreamDecodeError, "bybit: ticker decode", err)
	}
	if resp.RetCode != 0 || len(resp.Result.List) == 0 {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "bybit: no ticker for "+symbol)
	}
	t := resp.Result.List[0]
	return Ticker{
		Symbol:                Normalize(t.Symbol),
		LastPrice:             parseFloat(t.LastPrice),
		HighPrice24h:          parseFloat(t.HighPrice),
		LowPrice24h:           parseFloat(t.LowPrice),
		PriceChangePercent24h: parseFloat(t.PricePct) * 100,
		QuoteVolume:           parseFloat(t.Turnover24h),
	}, nil
}

type bybitKlineResp struct {
	RetCode int    `json:"retCode"`
	Result  struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

func bybitFetchKlines(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query := map[string]string{
		"category": bybitCategory(market),
		"symbol":   symbol,
		"interval": bybitIntervalCode(interval),
		"limit":    strconv.Itoa(limit),
	}
	if endBefore != nil {
		query["end"] = strconv.FormatInt(endBefore.UnixMilli(), 10)
	}
	body, err := a.rest.get(ctx, "/v5/market/kline", query)
	if err != nil {
		return nil, err
	}
	var resp bybitKlineResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bybit: klines decode", err)
	}
	if resp.RetCode != 0 {
		return nil, xerr.New(xerr.KindUpstreamDecodeError, "bybit: klines retCode nonzero")
	}

	// bybit returns newest-first; reverse to the oldest-first order every
	// adapter's Klines contract promises.
	out := make([]Candle, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		row := resp.Result.List[i]
		if len(row) < 7 {
			continue
		}
		startMs, _ := strconv.ParseInt(row[0], 10, 64)
		out = append(out, Candle{
			Time:     startMs / 1000,
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
			Turnover: parseFloat(row[6]),
			Closed:   true,
		})
	}
	return out, nil
}

type bybitInstrumentsResp struct {
	RetCode int `json:"retCode"`
	Result  struct {
		List []struct {
			Symbol    string `json:"symbol"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	} `json:"result"`
}

func bybitFetchActiveSymbols(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error) {
	body, err := a.rest.get(ctx, "/v5/market/instruments-info", map[string]string{
		"category": bybitCategory(market),
	})
	if err != nil {
		return nil, err
	}
	var resp bybitInstrumentsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bybit: instruments decode", err)
	}
	out := make(map[string]struct{})
	for _, s := range resp.Result.List {
		if s.QuoteCoin == "USDT" && (s.Status == "Trading" || s.Status == "") {
			out[Normalize(s.Symbol)] = struct{}{}
		}
	}
	return out, nil
}
