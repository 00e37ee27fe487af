package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"priceguard/xerr"
)

// NewMEXC builds the mexc adapter, grounded on ojo-network-price-feeder's
// mexc.go provider (ticker/exchangeInfo REST shapes) and the
// IvanTurko-mexc-sdk-go kline subscription helpers for the
// "spot@public.kline.v3.api@SYMBOL@Min1" channel naming.
func NewMEXC(sink Sink) Adapter {
	hooks := venueHooks{
		RESTBaseURL:       "https://api.mexc.com",
		RequestsPerSecond: 10,
		WSURL: func(Market) string {
			return "wss://wbs.mexc.com/ws"
		},
		FetchTicker:        mexcFetchTicker,
		FetchKlines:        mexcFetchKlines,
		FetchActiveSymbols: mexcFetchActiveSymbols,
		SubscribeFrame:     mexcFrame("SUBSCRIPTION"),
		UnsubscribeFrame:   mexcFrame("UNSUBSCRIPTION"),
		ParseMessage:       mexcParseMessage,
	}
	return newGenericAdapter("mexc", hooks, sink)
}

func mexcIntervalCode(interval string) string {
	switch interval {
	case "1m":
		return "Min1"
	case "5m":
		return "Min5"
	case "15m":
		return "Min15"
	case "30m":
		return "Min30"
	case "1h":
		return "Min60"
	case "4h":
		return "Hour4"
	case "1d":
		return "Day1"
	default:
		return interval
	}
}

func mexcChannel(symbol, interval string) string {
	return "spot@public.kline.v3.api@" + symbol + "@" + mexcIntervalCode(interval)
}

func mexcFrame(method string) func(Market, string, string) interface{} {
	return func(_ Market, symbol, interval string) interface{} {
		return map[string]interface{}{
			"method": method,
			"params": []string{mexcChannel(symbol, interval)},
		}
	}
}

type mexcWSPayload struct {
	Channel string `json:"c"`
	Symbol  string `json:"s"`
	Data    struct {
		Interval  string `json:"interval"`
		WindowStart int64 `json:"windowStart"`
		Open      string `json:"openingPrice"`
		Close     string `json:"closingPrice"`
		High      string `json:"highestPrice"`
		Low       string `json:"lowestPrice"`
		Volume    string `json:"volume"`
		Amount    string `json:"amount"`
	} `json:"d"`
}

func mexcParseMessage(_ Market, raw []byte) (parsedCandleMsg, bool) {
	var p mexcWSPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Channel == "" || p.Data.WindowStart == 0 {
		return parsedCandleMsg{}, false
	}
	if len(p.Channel) < len("spot@public.kline.v3.api@") {
		return parsedCandleMsg{}, false
	}

	// mexc is wired spot-only: the venue's REST fetches never branch on
	// market either, so there is no futures connection to disambiguate from.
	return parsedCandleMsg{
		Symbol:   Normalize(p.Symbol),
		Market:   MarketSpot,
		Interval: mexcIntervalFromLabel(p.Data.Interval),
		Candle: Candle{
			Time:     p.Data.WindowStart,
			Open:     parseFloat(p.Data.Open),
			High:     parseFloat(p.Data.High),
			Low:      parseFloat(p.Data.Low),
			Close:    parseFloat(p.Data.Close),
			Volume:   parseFloat(p.Data.Volume),
			Turnover: parseFloat(p.Data.Amount),
			Closed:   true,
		},
	}, true
}

func mexcIntervalFromLabel(label string) string {
	switch label {
	case "Min1":
		return "1m"
	case "Min5":
		return "5m"
	case "Min15":
		return "15m"
	case "Min30":
		return "30m"
	case "Min60":
		return "1h"
	case "Hour4":
		return "4h"
	case "Day1":
		return "1d"
	default:
		return label
	}
}

func mexcFetchTicker(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error) {
	body, err := a.rest.get(ctx, "/api/v3/ticker/24hr", map[string]string{"symbol": symbol})
	if err != nil {
		return Ticker{}, err
	}
	var r struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &r); err != nil || r.Symbol == "" {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "mexc: no ticker for "+symbol)
	}
	return Ticker{
		Symbol:                Normalize(r.Symbol),
		LastPrice:             parseFloat(r.LastPrice),
		HighPrice24h:          parseFloat(r.HighPrice),
		LowPrice24h:           parseFloat(r.LowPrice),
		PriceChangePercent24h: parseFloat(r.PriceChangePercent) * 100,
		QuoteVolume:           parseFloat(r.QuoteVolume),
	}, nil
}

func mexcFetchKlines(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	query := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	if endBefore != nil {
		query["endTime"] = strconv.FormatInt(endBefore.UnixMilli(), 10)
	}
	body, err := a.rest.get(ctx, "/api/v3/klines", query)
	if err != nil {
		return nil, err
	}
	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "mexc: klines decode", err)
	}

	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		out = append(out, Candle{
			Time:   int64(asFloat(row[0])) / 1000,
			Open:   asFloat(row[1]),
			High:   asFloat(row[2]),
			Low:    asFloat(row[3]),
			Close:  asFloat(row[4]),
			Volume: asFloat(row[5]),
			Closed: true,
		})
	}
	return out, nil
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseFloat(x)
	default:
		return 0
	}
}

func mexcFetchActiveSymbols(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error) {
	body, err := a.rest.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Symbols []struct {
			Symbol               string `json:"symbol"`
			QuoteAsset           string `json:"quoteAsset"`
			Status               string `json:"status"`
			IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "mexc: exchangeInfo decode", err)
	}
	out := make(map[string]struct{})
	for _, s := range resp.Symbols {
		if s.QuoteAsset == "USDT" && s.IsSpotTradingAllowed && s.Status == "1" {
			out[Normalize(s.Symbol)] = struct{}{}
		}
	}
	return out, nil
}
