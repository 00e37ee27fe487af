package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These guard the routing invariant kline.Manager depends on: whichever
// connection (spot or futures) delivered the frame, the parsed Market must
// match it, since nothing about the wire payload itself is reliable for
// venues that run one wire format across both markets.

func TestBinanceParseMessage_StampsConnectionMarket(t *testing.T) {
	raw := []byte(`{"data":{"s":"BTCUSDT","k":{"t":1700000000000,"i":"1m","o":"1","c":"2","h":"3","l":"0.5","v":"10","q":"20","x":true}}}`)

	spot, ok := binanceParseMessage(MarketSpot, raw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, spot.Market)

	futures, ok := binanceParseMessage(MarketFutures, raw)
	require.True(t, ok)
	assert.Equal(t, MarketFutures, futures.Market, "futures connection must not be reported as spot")
}

func TestBybitParseMessage_StampsConnectionMarket(t *testing.T) {
	raw := []byte(`{"topic":"kline.1.BTCUSDT","data":[{"start":1700000000000,"open":"1","high":"3","low":"0.5","close":"2","volume":"10","turnover":"20","confirm":true,"interval":"1"}]}`)

	spot, ok := bybitParseMessage(MarketSpot, raw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, spot.Market, "spot connection must not be reported as futures")

	futures, ok := bybitParseMessage(MarketFutures, raw)
	require.True(t, ok)
	assert.Equal(t, MarketFutures, futures.Market)
}

func TestOKXParseMessage_DerivesMarketFromInstID(t *testing.T) {
	spotRaw := []byte(`{"arg":{"channel":"candle1m","instId":"BTC-USDT"},"data":[["1700000000000","1","3","0.5","2","10","1","1","1"]]}`)
	spot, ok := okxParseMessage(MarketSpot, spotRaw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, spot.Market)

	swapRaw := []byte(`{"arg":{"channel":"candle1m","instId":"BTC-USDT-SWAP"},"data":[["1700000000000","1","3","0.5","2","10","1","1","1"]]}`)
	futures, ok := okxParseMessage(MarketFutures, swapRaw)
	require.True(t, ok)
	assert.Equal(t, MarketFutures, futures.Market, "instId's -SWAP suffix takes priority over the connection's market")
}

func TestGateParseMessage_DerivesMarketFromChannel(t *testing.T) {
	spotRaw := []byte(`{"channel":"spot.candlesticks","event":"update","result":[{"t":"1700000000","o":"1","h":"3","l":"0.5","c":"2","v":"10","n":"1m_BTC_USDT"}]}`)
	spot, ok := gateParseMessage(MarketSpot, spotRaw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, spot.Market)

	futuresRaw := []byte(`{"channel":"futures.candlesticks","event":"update","result":[{"t":1700000000,"o":"1","h":"3","l":"0.5","c":"2","v":"10","n":"1m_BTC_USDT"}]}`)
	futures, ok := gateParseMessage(MarketFutures, futuresRaw)
	require.True(t, ok)
	assert.Equal(t, MarketFutures, futures.Market)
}

func TestBitgetParseMessage_DerivesMarketFromInstType(t *testing.T) {
	spotRaw := []byte(`{"arg":{"instType":"SPOT","channel":"candle1m","instId":"BTCUSDT"},"action":"update","data":[["1700000000000","1","3","0.5","2","10","20"]]}`)
	spot, ok := bitgetParseMessage(MarketSpot, spotRaw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, spot.Market)

	futuresRaw := []byte(`{"arg":{"instType":"USDT-FUTURES","channel":"candle1m","instId":"BTCUSDT"},"action":"update","data":[["1700000000000","1","3","0.5","2","10","20"]]}`)
	futures, ok := bitgetParseMessage(MarketFutures, futuresRaw)
	require.True(t, ok)
	assert.Equal(t, MarketFutures, futures.Market)
}

func TestMEXCParseMessage_AlwaysSpot(t *testing.T) {
	raw := []byte(`{"c":"spot@public.kline.v3.api@BTCUSDT@Min1","s":"BTCUSDT","d":{"interval":"Min1","windowStart":1700000000,"openingPrice":"1","closingPrice":"2","highestPrice":"3","lowestPrice":"0.5","volume":"10","amount":"20"}}`)

	msg, ok := mexcParseMessage(MarketSpot, raw)
	require.True(t, ok)
	assert.Equal(t, MarketSpot, msg.Market, "mexc only ever runs a spot connection")
}
