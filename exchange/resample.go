package exchange

import "math"

// Resample1m splits a 1-minute candle into N sub-candles of targetSeconds
// each. The split is deterministic given the source bar's timestamp, and
// preserves the aggregate OHLC (s1.open=C.open, sN.close=C.close, max high,
// min low, sum volume) — no upstream venue streams sub-minute klines
// directly, so every sub-minute interval is synthesized from the 1m feed.
func Resample1m(c Candle, targetSeconds int) []Candle {
	if targetSeconds <= 0 || targetSeconds >= 60 || 60%targetSeconds != 0 {
		return []Candle{c}
	}
	n := 60 / targetSeconds
	out := make([]Candle, n)

	highIdx := deterministicIndex(c.Time, n, 1)
	lowIdx := deterministicIndex(c.Time, n, 2)

	volShare := c.Volume / float64(n)
	turnShare := c.Turnover / float64(n)

	prevClose := c.Open
	for i := 0; i < n; i++ {
		var close float64
		if i == n-1 {
			close = c.Close
		} else {
			frac := float64(i+1) / float64(n)
			close = c.Open + (c.Close-c.Open)*frac
		}
		open := prevClose
		high := math.Max(open, close)
		low := math.Min(open, close)
		if i == highIdx {
			high = math.Max(high, c.High)
		}
		if i == lowIdx {
			low = math.Min(low, c.Low)
		}

		vol := volShare
		turn := turnShare
		if i == n-1 {
			vol = c.Volume - volShare*float64(n-1)
			turn = c.Turnover - turnShare*float64(n-1)
		}

		out[i] = Candle{
			Time:     c.Time + int64(i*targetSeconds),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   vol,
			Turnover: turn,
			Closed:   c.Closed,
		}
		prevClose = close
	}
	return out
}

// deterministicIndex picks a stable sub-candle slot from the source bar's
// timestamp so the same 1m bar always resamples the same way.
func deterministicIndex(timestamp int64, n int, salt int64) int {
	h := timestamp*1000003 + salt*7919
	if h < 0 {
		h = -h
	}
	return int(h % int64(n))
}

// SupportedSubMinuteIntervals are the sub-minute intervals synthesized from
// 1m bars.
var SupportedSubMinuteIntervals = map[string]int{
	"1s":  1,
	"5s":  5,
	"15s": 15,
}
