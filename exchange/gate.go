package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"priceguard/xerr"
)

// NewGate builds the gate.io adapter, grounded on the Gate.io v4 REST shape
// (array-of-object tickers, array-of-array candlesticks) and the
// shuiali-Futures-Arbitrage connector's use of underscore-joined
// "BASE_QUOTE" instrument IDs, with "spot.candlesticks"/"futures.
// candlesticks" websocket channels subscribed via {channel, event, payload}.
func NewGate(sink Sink) Adapter {
	hooks := venueHooks{
		RESTBaseURL:       "https://api.gateio.ws",
		RequestsPerSecond: 8,
		WSURL: func(market Market) string {
			if market == MarketFutures {
				return "wss://fx-ws.gateio.ws/v4/ws/usdt"
			}
			return "wss://api.gateio.ws/ws/v4/"
		},
		FetchTicker:        gateFetchTicker,
		FetchKlines:        gateFetchKlines,
		FetchActiveSymbols: gateFetchActiveSymbols,
		SubscribeFrame:     gateFrame("subscribe"),
		UnsubscribeFrame:   gateFrame("unsubscribe"),
		ParseMessage:       gateParseMessage,
	}
	return newGenericAdapter("gate", hooks, sink)
}

func gatePair(canonicalSymbol string) string {
	base, quote := splitBaseQuote(canonicalSymbol)
	if base == "" {
		return canonicalSymbol
	}
	return base + "_" + quote
}

func gateChannel(market Market) string {
	if market == MarketFutures {
		return "futures.candlesticks"
	}
	return "spot.candlesticks"
}

func gateFrame(event string) func(Market, string, string) interface{} {
	return func(market Market, symbol, interval string) interface{} {
		return map[string]interface{}{
			"time":    time.Now().Unix(),
			"channel": gateChannel(market),
			"event":   event,
			"payload": []string{interval, gatePair(symbol)},
		}
	}
}

type gateWSPayload struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Result  json.RawMessage `json:"result"`
}

func gateParseMessage(_ Market, raw []byte) (parsedCandleMsg, bool) {
	var p gateWSPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Event != "update" {
		return parsedCandleMsg{}, false
	}

	market := MarketSpot
	if p.Channel == "futures.candlesticks" {
		market = MarketFutures
	} else if p.Channel != "spot.candlesticks" {
		return parsedCandleMsg{}, false
	}

	if market == MarketFutures {
		var rows []struct {
			T int64  `json:"t"`
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
			V string `json:"v"`
			N string `json:"n"` // contract/interval label, e.g. "1m_BTC_USDT"
		}
		if err := json.Unmarshal(p.Result, &rows); err != nil || len(rows) == 0 {
			return parsedCandleMsg{}, false
		}
		r := rows[0]
		interval, symbol := gateSplitLabel(r.N)
		return parsedCandleMsg{
			Symbol:   Normalize(symbol),
			Market:   market,
			Interval: interval,
			Candle: Candle{
				Time:   r.T,
				Open:   parseFloat(r.O),
				High:   parseFloat(r.H),
				Low:    parseFloat(r.L),
				Close:  parseFloat(r.C),
				Volume: parseFloat(r.V),
				Closed: true,
			},
		}, true
	}

	var rows []struct {
		T string `json:"t"`
		O string `json:"o"`
		H string `json:"h"`
		L string `json:"l"`
		C string `json:"c"`
		V string `json:"v"`
		N string `json:"n"`
	}
	if err := json.Unmarshal(p.Result, &rows); err != nil || len(rows) == 0 {
		return parsedCandleMsg{}, false
	}
	r := rows[0]
	ts, _ := strconv.ParseInt(r.T, 10, 64)
	interval, symbol := gateSplitLabel(r.N)
	return parsedCandleMsg{
		Symbol:   Normalize(symbol),
		Market:   market,
		Interval: interval,
		Candle: Candle{
			Time:   ts,
			Open:   parseFloat(r.O),
			High:   parseFloat(r.H),
			Low:    parseFloat(r.L),
			Close:  parseFloat(r.C),
			Volume: parseFloat(r.V),
			Closed: true,
		},
	}, true
}

// gateSplitLabel splits gate's "<interval>_<BASE>_<QUOTE>" candle label.
func gateSplitLabel(label string) (interval, symbol string) {
	parts := splitSeparators2(label, '_')
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], parts[1] + parts[2]
}

func gateFetchTicker(ctx context.Context, a *genericAdapter, market Market, symbol string) (Ticker, error) {
	path := "/api/v4/spot/tickers"
	query := map[string]string{"currency_pair": gatePair(symbol)}
	if market == MarketFutures {
		path = "/api/v4/futures/usdt/tickers"
		query = map[string]string{"contract": gatePair(symbol)}
	}

	body, err := a.rest.get(ctx, path, query)
	if err != nil {
		return Ticker{}, err
	}

	if market == MarketFutures {
		var rows []struct {
			Contract       string `json:"contract"`
			Last           string `json:"last"`
			High24h        string `json:"high_24h"`
			Low24h         string `json:"low_24h"`
			ChangePct      string `json:"change_percentage"`
			Volume24hQuote string `json:"volume_24h_quote"`
		}
		if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
			return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "gate: no futures ticker for "+symbol)
		}
		r := rows[0]
		return Ticker{
			Symbol:                Normalize(r.Contract),
			LastPrice:             parseFloat(r.Last),
			HighPrice24h:          parseFloat(r.High24h),
			LowPrice24h:           parseFloat(r.Low24h),
			PriceChangePercent24h: parseFloat(r.ChangePct),
			QuoteVolume:           parseFloat(r.Volume24hQuote),
		}, nil
	}

	var rows []struct {
		CurrencyPair  string `json:"currency_pair"`
		Last          string `json:"last"`
		High24h       string `json:"high_24h"`
		Low24h        string `json:"low_24h"`
		ChangePercent string `json:"change_percentage"`
		QuoteVolume   string `json:"quote_volume"`
	}
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return Ticker{}, xerr.New(xerr.KindSymbolUnresolved, "gate: no ticker for "+symbol)
	}
	r := rows[0]
	return Ticker{
		Symbol:                Normalize(r.CurrencyPair),
		LastPrice:             parseFloat(r.Last),
		HighPrice24h:          parseFloat(r.High24h),
		LowPrice24h:           parseFloat(r.Low24h),
		PriceChangePercent24h: parseFloat(r.ChangePercent),
		QuoteVolume:           parseFloat(r.QuoteVolume),
	}, nil
}

func gateFetchKlines(ctx context.Context, a *genericAdapter, market Market, symbol, interval string, limit int, endBefore *time.Time) ([]Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	if market == MarketFutures {
		query := map[string]string{
			"contract": gatePair(symbol),
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}
		if endBefore != nil {
			query["to"] = strconv.FormatInt(endBefore.Unix(), 10)
		}
		body, err := a.rest.get(ctx, "/api/v4/futures/usdt/candlesticks", query)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			T int64  `json:"t"`
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
			V string `json:"v"`
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "gate: futures klines decode", err)
		}
		out := make([]Candle, 0, len(rows))
		for _, r := range rows {
			out = append(out, Candle{
				Time: r.T, Open: parseFloat(r.O), High: parseFloat(r.H),
				Low: parseFloat(r.L), Close: parseFloat(r.C), Volume: parseFloat(r.V), Closed: true,
			})
		}
		return out, nil
	}

	query := map[string]string{
		"currency_pair": gatePair(symbol),
		"interval":      interval,
		"limit":         strconv.Itoa(limit),
	}
	if endBefore != nil {
		query["to"] = strconv.FormatInt(endBefore.Unix(), 10)
	}
	body, err := a.rest.get(ctx, "/api/v4/spot/candlesticks", query)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "gate: spot klines decode", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		out = append(out, Candle{
			Time:   ts,
			Volume: parseFloat(row[1]),
			Close:  parseFloat(row[2]),
			High:   parseFloat(row[3]),
			Low:    parseFloat(row[4]),
			Open:   parseFloat(row[5]),
			Closed: true,
		})
	}
	return out, nil
}

func gateFetchActiveSymbols(ctx context.Context, a *genericAdapter, market Market) (map[string]struct{}, error) {
	path := "/api/v4/spot/currency_pairs"
	if market == MarketFutures {
		path = "/api/v4/futures/usdt/contracts"
	}
	body, err := a.rest.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{})
	if market == MarketFutures {
		var rows []struct {
			Name   string `json:"name"`
			InDelisting bool `json:"in_delisting"`
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "gate: futures contracts decode", err)
		}
		for _, r := range rows {
			if !r.InDelisting {
				out[Normalize(r.Name)] = struct{}{}
			}
		}
		return out, nil
	}

	var rows []struct {
		ID     string `json:"id"`
		Quote  string `json:"quote"`
		Status string `json:"trade_status"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, xerr.Wrap(xerr.KindUpstreamDecodeError, "gate: currency pairs decode", err)
	}
	for _, r := range rows {
		if r.Quote == "USDT" && r.Status == "tradable" {
			out[Normalize(r.ID)] = struct{}{}
		}
	}
	return out, nil
}
