package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"priceguard/xerr"
)

// NewBitget builds the bitget adapter, grounded on the retrieved
// oracle-provider-bitget.go reference: BitgetWsSubscriptionMsg's
// {op, args:[{instType, channel, instId}]} framing and the v2 REST split
// between /api/v2/spot/market/* and /api/v2/mix/market/* endpoints.
func NewBitget(sink Sink) Adapter {
	hooks := venueHooks{
		RESTBaseURL:       "https://api.bitget.com",
		RequestsPerSecond: 10,
		WSURL: func(market Market) string {
			if market == MarketFutures {
				return "wss://ws.bitget.com/v2/ws/public"
			}
			return "wss://ws.bitget.com/v2/ws/public"
		},
		FetchTicker:        bitgetFetchTicker,
		FetchKlines:        bitgetFetchKlines,
		FetchActiveSymbols: bitgetFetchActiveSymbols,
		SubscribeFrame:     bitgetFrame("subscribe"),
		UnsubscribeFrame:   bitgetFrame("unsubscribe"),
		ParseMessage:       bitgetParseMessage,
	}
	return newGenericAdapter("bitget", hooks, sink)
}

func bitgetInstType(market Market) string {
	if market == MarketFutures {
		return "USDT-FUTURES"
	}
	return "SPOT"
}

func bitgetIntervalCode(interval string) string {
	switch interval {
	case "1m":
		return "candle1m"
	case "5m":
		return "candle5m"
	case "15m":
		return "candle15m"
	case "30m":
		return "candle30m"
	case "1h":
		return "candle1H"
	case "4h":
		return "candle4H"
	case "1d":
		return "candle1D"
	default:
		return "candle" + interval
	}
}

type bitgetWsArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

func bitgetFrame(op string) func(Market, string, string) interface{} {
	return func(market Market, symbol, interval string) interface{} {
		return map[string]interface{}{
			"op": op,
			"args": []bitgetWsArg{
				{
					InstType: bitgetInstType(market),
					Channel:  bitgetIntervalCode(interval),
					InstID:   symbol,
				},
			},
		}
	}
}

type bitgetWSPayload struct {
	Arg    bitgetWsArg `json:"arg"`
	Action string      `json:"action"`
	Data   [][]string  `json:"data"`
}

func bitgetParseMessage(_ Market, raw []byte) (parsedCandleMsg, bool) {
	var p bitgetWSPayload
	if err := json.Unmarshal(raw, &p); err != nil || len(p.Data) == 0 {
		return parsedCandleMsg{}, false
	}
	row := p.Data[0]
	if len(row) < 6 {
		return parsedCandleMsg{}, false
	}
	ms, _ := strconv.ParseInt(row[0], 10, 64)
	market := MarketSpot
	if p.Arg.InstType == "USDT-FUTURES" {
		market = MarketFutures
	}

	var turnover float64
	if len(row) >= 7 {
		turnover = parseFloat(row[6])
	}

	return parsedCandleMsg{
		Symbol:   Normalize(p.Arg.InstID),
		Market:   market,
		Interval: bitgetIntervalFromChannel(p.Arg.Channel),
		Candle: Candle{
			Time:     ms / 1000,
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
			Turnover: turnover,
			// bitget's snapshot-style candle channel carries no explicit
			// confirm flag; each push is treated as the latest state of
			// the still-open bar.
			Closed: false,
		},
	}, true
}

func bitgetIntervalFromChannel(channel string) string {
	code := channel[len("candle"):]
	switch code {
	case "1m", "5m", "15m", "30m":
		return code
	case "1H":
		return "1h"
	case "4H":
		return "4h"
	case "1D":
		return "1d"
	default:
		return code
	}
}

type bitgetEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func bitgetFetchTicker(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error) {
	path := "/api/v2/spot/market/tickers"
	query := map[string]string{"symbol": symbol}
	if market == MarketFutures {
		path = "/api/v2/mix/market/ticker"
		query = map[string]string{"symbol": symbol, "productType": "usdt-futures"}
	}

	body, err := a.rest.get(ctx, path, query)
	if err != nil {
		return Ticker{}, err
	}
	var env bitgetEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Ticker{}, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: ticker decode", err)
	}
	var rows []struct {
		Symbol       string `json:"symbol"`
		LastPr       string `json:"lastPr"`
		High24h      string `json:"high24h"`
		Low24h       string `json:"low24h"`
		Change24h    string `json:"change24h"`
		QuoteVolume  string `json:"quoteVolume"`
		USDTVolume   string `json:"usdtVolume"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil || len(rows) == 0 {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "bitget: no ticker for "+symbol)
	}
	r := rows[0]
	qv := parseFloat(r.QuoteVolume)
	if qv == 0 {
		qv = parseFloat(r.USDTVolume)
	}
	return Ticker{
		Symbol:                Normalize(r.Symbol),
		LastPrice:             parseFloat(r.LastPr),
		HighPrice24h:          parseFloat(r.High24h),
		LowPrice24h:           parseFloat(r.Low24h),
		PriceChangePercent24h: parseFloat(r.Change24h) * 100,
		QuoteVolume:           qv,
	}, nil
}

func bitgetFetchKlines(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	path := "/api/v2/spot/market/candles"
	query := map[string]string{
		"symbol":     symbol,
		"granularity": bitgetGranularity(interval),
		"limit":      strconv.Itoa(limit),
	}
	if market == MarketFutures {
		path = "/api/v2/mix/market/candles"
		query["productType"] = "usdt-futures"
	}
	if endBefore != nil {
		query["endTime"] = strconv.FormatInt(endBefore.UnixMilli(), 10)
	}

	body, err := a.rest.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var env bitgetEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: klines decode", err)
	}
	var rows [][]string
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: klines data decode", err)
	}

	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		var turnover float64
		if len(row) >= 7 {
			turnover = parseFloat(row[6])
		}
		out = append(out, Candle{
			Time:     ms / 1000,
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
			Turnover: turnover,
			Closed:   true,
		})
	}
	return out, nil
}

func bitgetGranularity(interval string) string {
	switch interval {
	case "1m":
		return "1min"
	case "5m":
		return "5min"
	case "15m":
		return "15min"
	case "30m":
		return "30min"
	case "1h":
		return "1h"
	case "4h":
		return "4h"
	case "1d":
		return "1day"
	default:
		return interval
	}
}

func bitgetFetchActiveSymbols(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error) {
	path := "/api/v2/spot/public/symbols"
	query := map[string]string(nil)
	if market == MarketFutures {
		path = "/api/v2/mix/market/contracts"
		query = map[string]string{"productType": "usdt-futures"}
	}
	body, err := a.rest.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var env bitgetEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: symbols decode", err)
	}

	out := make(map[string]struct{})
	if market == MarketFutures {
		var rows []struct {
			Symbol     string `json:"symbol"`
			QuoteCoin  string `json:"quoteCoin"`
			SymbolType string `json:"symbolStatus"`
		}
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: contracts decode", err)
		}
		for _, r := range rows {
			if r.QuoteCoin == "USDT" && r.SymbolType == "normal" {
				out[Normalize(r.Symbol)] = struct{}{}
			}
		}
		return out, nil
	}

	var rows []struct {
		Symbol     string `json:"symbol"`
		QuoteCoin  string `json:"quoteCoin"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "bitget: spot symbols decode", err)
	}
	for _, r := range rows {
		if r.QuoteCoin == "USDT" && r.Status == "online" {
			out[Normalize(r.Symbol)] = struct{}{}
		}
	}
	return out, nil
}
