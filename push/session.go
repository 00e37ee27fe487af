package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"priceguard/exchange"
	"priceguard/kline"
	"priceguard/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	alertSendWait  = 5 * time.Second
	maxMessageSize = 1 << 16
)

// Session is one authenticated client connection.
type Session struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	manager *kline.Manager
	log     zerolog.Logger

	out       chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id, userID string, conn *websocket.Conn, manager *kline.Manager) *Session {
	return &Session{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		manager: manager,
		log:     logger.Named("push.session"),
		out:     make(chan []byte, outboundQueueSize),
		done:    make(chan struct{}),
	}
}

// trySend is the non-blocking path used for kline-update/kline-error: a
// saturated queue drops the frame rather than blocking the broadcaster.
// Reports whether the frame was enqueued.
func (s *Session) trySend(payload []byte) bool {
	select {
	case s.out <- payload:
		return true
	default:
		s.log.Warn().Str("sessionID", s.ID).Msg("outbound queue saturated, dropping frame")
		return false
	}
}

// sendBlocking is used for alert-triggered, which must not be dropped for a
// live connection. It still bounds its wait so one wedged session can't
// stall the whole room. Reports whether the frame was enqueued.
func (s *Session) sendBlocking(payload []byte) bool {
	select {
	case s.out <- payload:
		return true
	case <-time.After(alertSendWait):
		s.log.Warn().Str("sessionID", s.ID).Msg("alert-triggered dropped: session unresponsive")
		return false
	case <-s.done:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// writePump drains s.out to the socket and keeps the ping cadence: the
// standard gorilla idiom of a ping period at 9/10 of pongWait, so a ping
// always lands before the peer's read deadline expires.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientEvent is the envelope for subscribe-kline/unsubscribe-kline frames.
type clientEvent struct {
	Event   string          `json:"event"`
	Payload clientKeyFields `json:"payload"`
}

type clientKeyFields struct {
	Exchange     string          `json:"exchange"`
	Symbol       string          `json:"symbol"`
	Interval     string          `json:"interval"`
	ExchangeType exchange.Market `json:"exchangeType"`
}

// readPump consumes client->server frames until the socket closes, routing
// subscribe-kline/unsubscribe-kline to the kline.Manager and surfacing
// subscribe failures as kline-error.
func (s *Session) readPump(hub *Hub) {
	defer hub.Leave(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev clientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			hub.SendKlineError(s.ID, "malformed event")
			continue
		}

		key := kline.Key{
			Exchange: ev.Payload.Exchange,
			Symbol:   exchange.Normalize(ev.Payload.Symbol),
			Interval: ev.Payload.Interval,
			Market:   ev.Payload.ExchangeType,
		}

		switch ev.Event {
		case "subscribe-kline":
			if err := s.manager.Subscribe(s.ID, key); err != nil {
				hub.SendKlineError(s.ID, err.Error())
			}
		case "unsubscribe-kline":
			s.manager.Unsubscribe(s.ID, key)
		default:
			hub.SendKlineError(s.ID, "unknown event: "+ev.Event)
		}
	}
}
