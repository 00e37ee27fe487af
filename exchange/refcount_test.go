package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefCounter_IncReportsOnlyZeroToOneTransition(t *testing.T) {
	r := newRefCounter()
	k := streamKey{Symbol: "BTCUSDT", Market: MarketSpot, Interval: "1m"}

	assert.True(t, r.inc(k), "first reference is the 0->1 transition")
	assert.False(t, r.inc(k))
	assert.False(t, r.inc(k))
}

func TestRefCounter_DecReportsOnlyOneToZeroTransition(t *testing.T) {
	r := newRefCounter()
	k := streamKey{Symbol: "ETHUSDT", Market: MarketFutures, Interval: "5m"}

	r.inc(k)
	r.inc(k)
	r.inc(k)

	assert.False(t, r.dec(k))
	assert.False(t, r.dec(k))
	assert.True(t, r.dec(k), "last reference is the 1->0 transition")
}

func TestRefCounter_DecOnAbsentKeyIsNoop(t *testing.T) {
	r := newRefCounter()
	k := streamKey{Symbol: "BTCUSDT", Market: MarketSpot, Interval: "1m"}
	assert.False(t, r.dec(k))
}

func TestRefCounter_SnapshotReflectsLiveKeysOnly(t *testing.T) {
	r := newRefCounter()
	k1 := streamKey{Symbol: "BTCUSDT", Market: MarketSpot, Interval: "1m"}
	k2 := streamKey{Symbol: "ETHUSDT", Market: MarketSpot, Interval: "1m"}

	r.inc(k1)
	r.inc(k2)
	r.dec(k2)

	snap := r.snapshot()
	assert.Equal(t, []streamKey{k1}, snap)
}
