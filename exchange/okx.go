package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"priceguard/xerr"
)

// NewOKX builds the okx adapter. REST/WS shapes follow OKX's v5 API:
// {code, msg, data:[...]} REST envelopes and
// {"op":"subscribe","args":[{"channel":"candle1m","instId":"BTC-USDT"}]} WS
// framing — the same {op, args:[{...}]} shape ojo-network-price-feeder's
// OkxSubscriptionMsg uses for tickers, generalized here to candle channels.
func NewOKX(sink Sink) Adapter {
	hooks := venueHooks{
		RESTBaseURL:       "https://www.okx.com",
		RequestsPerSecond: 15,
		WSURL: func(Market) string {
			return "wss://ws.okx.com:8443/ws/v5/public"
		},
		FetchTicker:        okxFetchTicker,
		FetchKlines:        okxFetchKlines,
		FetchActiveSymbols: okxFetchActiveSymbols,
		SubscribeFrame:     okxFrame("subscribe"),
		UnsubscribeFrame:   okxFrame("unsubscribe"),
		ParseMessage:       okxParseMessage,
	}
	return newGenericAdapter("okx", hooks, sink)
}

// okxInstID renders the venue-native instrument ID: "BTC-USDT" for spot,
// "BTC-USDT-SWAP" for the USDT-margined perpetual.
func okxInstID(market Market, canonicalSymbol string) string {
	base, quote := splitBaseQuote(canonicalSymbol)
	if base == "" {
		return canonicalSymbol
	}
	if market == MarketFutures {
		return fmt.Sprintf("%s-%s-SWAP", base, quote)
	}
	return fmt.Sprintf("%s-%s", base, quote)
}

// splitBaseQuote recovers base/quote from a canonical BASEQUOTE symbol for
// the handful of quote assets OKX/gate/bitget need dash- or underscore-
// joined in their native instrument IDs.
func splitBaseQuote(canonical string) (base, quote string) {
	for _, q := range []string{"USDT", "USDC", "USD"} {
		if len(canonical) > len(q) && canonical[len(canonical)-len(q):] == q {
			return canonical[:len(canonical)-len(q)], q
		}
	}
	return "", ""
}

func okxIntervalCode(interval string) string {
	switch interval {
	case "1m":
		return "1m"
	case "5m":
		return "5m"
	case "15m":
		return "15m"
	case "30m":
		return "30m"
	case "1h":
		return "1H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	default:
		return interval
	}
}

func okxFrame(op string) func(Market, string, string) interface{} {
	return func(market Market, symbol, interval string) interface{} {
		return map[string]interface{}{
			"op": op,
			"args": []map[string]string{
				{
					"channel": "candle" + okxIntervalCode(interval),
					"instId":  okxInstID(market, symbol),
				},
			},
		}
	}
}

type okxWSPayload struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

func okxParseMessage(_ Market, raw []byte) (parsedCandleMsg, bool) {
	var p okxWSPayload
	if err := json.Unmarshal(raw, &p); err != nil || len(p.Data) == 0 || len(p.Arg.Channel) < 6 {
		return parsedCandleMsg{}, false
	}
	row := p.Data[0]
	if len(row) < 6 {
		return parsedCandleMsg{}, false
	}
	ms, _ := strconv.ParseInt(row[0], 10, 64)
	confirm := len(row) >= 9 && row[8] == "1"

	// instId carries its own suffix (e.g. "-SWAP"), so the connection's
	// market is redundant here and the payload is trusted directly.
	return parsedCandleMsg{
		Symbol:   Normalize(p.Arg.InstID),
		Market:   okxMarketFromInstID(p.Arg.InstID),
		Interval: okxIntervalFromChannel(p.Arg.Channel),
		Candle: Candle{
			Time:   ms / 1000,
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
			Closed: confirm,
		},
	}, true
}

func okxMarketFromInstID(instID string) Market {
	if len(instID) > 5 && instID[len(instID)-5:] == "-SWAP" {
		return MarketFutures
	}
	return MarketSpot
}

func okxIntervalFromChannel(channel string) string {
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

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func okxFetchTicker(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error) {
	body, err := a.rest.get(ctx, "/api/v5/market/ticker", map[string]string{"instId": okxInstID(market, symbol)})
	if err != nil {
		return Ticker{}, err
	}
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Ticker{}, xerr.Wrap(xerr.KindUpstreamDecodeError, "okx: ticker decode", err)
	}
	var rows []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		High24h   string `json:"high24h"`
		Low24h    string `json:"low24h"`
		VolCcy24h string `json:"volCcy24h"`
		Open24h   string `json:"open24h"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil || len(rows) == 0 {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "okx: no ticker for "+symbol)
	}
	r := rows[0]
	last := parseFloat(r.Last)
	open := parseFloat(r.Open24h)
	var pct float64
	if open != 0 {
		pct = (last - open) / open * 100
	}
	return Ticker{
		Symbol:                Normalize(r.InstID),
		LastPrice:             last,
		HighPrice24h:          parseFloat(r.High24h),
		LowPrice24h:           parseFloat(r.Low24h),
		PriceChangePercent24h: pct,
		QuoteVolume:           parseFloat(r.VolCcy24h),
	}, nil
}

func okxFetchKlines(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if limit <= 0 || limit > 300 {
		limit = 200
	}
	query := map[string]string{
		"instId": okxInstID(market, symbol),
		"bar":    okxIntervalCode(interval),
		"limit":  strconv.Itoa(limit),
	}
	if endBefore != nil {
		query["after"] = strconv.FormatInt(endBefore.UnixMilli(), 10)
	}
	body, err := a.rest.get(ctx, "/api/v5/market/candles", query)
	if err != nil {
		return nil, err
	}
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "okx: klines decode", err)
	}
	var rows [][]string
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "okx: klines data decode", err)
	}

	out := make([]Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		out = append(out, Candle{
			Time:   ms / 1000,
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
			Closed: true,
		})
	}
	return out, nil
}

func okxFetchActiveSymbols(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error) {
	instType := "SPOT"
	if market == MarketFutures {
		instType = "SWAP"
	}
	body, err := a.rest.get(ctx, "/api/v5/public/instruments", map[string]string{"instType": instType})
	if err != nil {
		return nil, err
	}
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "okx: instruments decode", err)
	}
	var rows []struct {
		InstID   string `json:"instId"`
		QuoteCcy string `json:"quoteCcy"`
		CtType   string `json:"ctType"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "okx: instruments data decode", err)
	}
	out := make(map[string]struct{})
	for _, r := range rows {
		if r.State != "live" {
			continue
		}
		if market == MarketFutures {
			if r.CtType != "linear" {
				continue
			}
		} else if r.QuoteCcy != "USDT" {
			continue
		}
		out[Normalize(r.InstID)] = struct{}{}
	}
	return out, nil
}
