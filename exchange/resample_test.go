package exchange

import (
	"math"
	"testing"
)

func TestResample1m_PreservesAggregateOHLC(t *testing.T) {
	sources := []Candle{
		{Time: 1_700_000_000, Open: 100, High: 105, Low: 98, Close: 102, Volume: 60, Closed: true},
		{Time: 1_700_000_060, Open: 50, High: 50.5, Low: 49.5, Close: 50.2, Volume: 12, Closed: true},
		{Time: 1_700_000_120, Open: 10, High: 10, Low: 10, Close: 10, Volume: 0, Closed: false},
	}

	for _, c := range sources {
		for interval, n := range SupportedSubMinuteIntervals {
			subs := Resample1m(c, n)
			if len(subs) != 60/n {
				t.Fatalf("%s: got %d sub-candles, want %d", interval, len(subs), 60/n)
			}
			if subs[0].Open != c.Open {
				t.Errorf("%s: s1.open = %v, want %v", interval, subs[0].Open, c.Open)
			}
			last := subs[len(subs)-1]
			if last.Close != c.Close {
				t.Errorf("%s: sN.close = %v, want %v", interval, last.Close, c.Close)
			}

			maxHigh, minLow, sumVol := subs[0].High, subs[0].Low, 0.0
			prevTime := subs[0].Time - 1
			for _, s := range subs {
				if s.Time <= prevTime {
					t.Errorf("%s: time not strictly increasing: %d after %d", interval, s.Time, prevTime)
				}
				prevTime = s.Time
				if s.High > maxHigh {
					maxHigh = s.High
				}
				if s.Low < minLow {
					minLow = s.Low
				}
				sumVol += s.Volume
				if s.Low > math.Min(s.Open, s.Close)+1e-9 || s.High < math.Max(s.Open, s.Close)-1e-9 {
					t.Errorf("%s: sub-candle OHLC invariant violated: %+v", interval, s)
				}
			}
			if math.Abs(maxHigh-c.High) > 1e-9 {
				t.Errorf("%s: max high = %v, want %v", interval, maxHigh, c.High)
			}
			if math.Abs(minLow-c.Low) > 1e-9 {
				t.Errorf("%s: min low = %v, want %v", interval, minLow, c.Low)
			}
			if math.Abs(sumVol-c.Volume) > 1e-9 {
				t.Errorf("%s: sum volume = %v, want %v", interval, sumVol, c.Volume)
			}
		}
	}
}

func TestResample1m_Deterministic(t *testing.T) {
	c := Candle{Time: 42, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	a := Resample1m(c, 5)
	b := Resample1m(c, 5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("resample not deterministic at index %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestResample1m_UnsupportedIntervalReturnsSource(t *testing.T) {
	c := Candle{Time: 1, Open: 1, High: 1, Low: 1, Close: 1}
	out := Resample1m(c, 7)
	if len(out) != 1 || out[0] != c {
		t.Fatalf("expected passthrough for unsupported target, got %+v", out)
	}
}
