package push

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceguard/alert"
	"priceguard/exchange"
	"priceguard/kline"
)

// newTestSession builds a Session without a real network connection, for
// exercising Hub routing logic directly against the out channel.
func newTestSession(id, userID string) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		out:    make(chan []byte, outboundQueueSize),
		done:   make(chan struct{}),
	}
}

func TestHub_BroadcastKline_DeliversToListedSessions(t *testing.T) {
	reg := exchange.NewRegistry()
	manager := kline.NewManager(reg)
	hub := NewHub(manager)

	s1 := newTestSession("c1", "user-1")
	s2 := newTestSession("c2", "user-2")
	hub.Join(s1)
	hub.Join(s2)

	hub.BroadcastKline([]string{"c1"}, kline.Update{Exchange: "binance", Symbol: "BTCUSDT"})

	select {
	case msg := <-s1.out:
		var env serverEvent
		require.NoError(t, json.Unmarshal(msg, &env))
		assert.Equal(t, "kline-update", env.Event)
	case <-time.After(time.Second):
		t.Fatal("expected frame on s1")
	}

	select {
	case <-s2.out:
		t.Fatal("s2 should not have received the frame")
	default:
	}
}

func TestHub_BroadcastKline_DropsWhenQueueSaturated(t *testing.T) {
	reg := exchange.NewRegistry()
	manager := kline.NewManager(reg)
	hub := NewHub(manager)

	s := &Session{ID: "c1", UserID: "user-1", out: make(chan []byte, 1), done: make(chan struct{})}
	hub.Join(s)

	hub.BroadcastKline([]string{"c1"}, kline.Update{Exchange: "binance"})
	hub.BroadcastKline([]string{"c1"}, kline.Update{Exchange: "binance"}) // queue now saturated

	assert.Len(t, s.out, 1, "second frame dropped rather than blocking")
}

func TestHub_EmitAlertTriggered_DeliversToEveryRoomSession(t *testing.T) {
	reg := exchange.NewRegistry()
	manager := kline.NewManager(reg)
	hub := NewHub(manager)

	s1 := newTestSession("c1", "user-1")
	s2 := newTestSession("c2", "user-1")
	hub.Join(s1)
	hub.Join(s2)

	hub.EmitAlertTriggered("user-1", alert.TriggerPayload{AlertID: "a1", Triggered: true})

	for _, s := range []*Session{s1, s2} {
		select {
		case msg := <-s.out:
			var env serverEvent
			require.NoError(t, json.Unmarshal(msg, &env))
			assert.Equal(t, "alert-triggered", env.Event)
		case <-time.After(time.Second):
			t.Fatal("expected alert-triggered frame")
		}
	}
}

func TestHub_Leave_RemovesFromRoomAndUnsubscribes(t *testing.T) {
	reg := exchange.NewRegistry()
	manager := kline.NewManager(reg)
	hub := NewHub(manager)

	s := newTestSession("c1", "user-1")
	hub.Join(s)

	key := kline.Key{Exchange: "binance", Symbol: "BTCUSDT", Interval: "1m", Market: exchange.MarketFutures}
	hub.mu.Lock()
	_, exists := hub.rooms["user-1"]["c1"]
	hub.mu.Unlock()
	require.True(t, exists)

	hub.Leave(s)

	hub.mu.Lock()
	_, stillExists := hub.rooms["user-1"]
	hub.mu.Unlock()
	assert.False(t, stillExists)
	assert.Equal(t, 0, manager.ClientKeyCount("c1"))
	_ = key
}
