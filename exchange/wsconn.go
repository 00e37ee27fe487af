package exchange

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"priceguard/logger"
	"priceguard/metrics"
)

// wsConn is the reconnecting websocket connection every venue adapter
// embeds: exponential backoff with jitter on connect failure, a ping
// keepalive, and a subscription-confirmation watchdog that forces a
// reconnect if the server goes quiet without ever actually dropping the
// TCP connection.
type wsConn struct {
	url    string
	venue  string
	dialer websocket.Dialer
	log    zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}

	onMessage func([]byte)
	// onConnect is invoked after every successful (re)connect; it must
	// re-issue exactly the subset of subscriptions currently referenced,
	// never the full history of everything ever subscribed.
	onConnect func(c *wsConn)

	pingInterval time.Duration
	pingPayload  []byte

	watchdog *subscriptionWatchdog
	metrics  *metrics.WSRecorder
}

const (
	reconnectInitialDelay = 5 * time.Second
	reconnectMaxDelay     = 60 * time.Second
	watchdogTimeout       = 10 * time.Second
)

func newWSConn(venue, url string, onMessage func([]byte), onConnect func(*wsConn)) *wsConn {
	return &wsConn{
		url:          url,
		venue:        venue,
		dialer:       websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:          logger.Named("exchange." + venue),
		done:         make(chan struct{}),
		onMessage:    onMessage,
		onConnect:    onConnect,
		pingInterval: 20 * time.Second,
		pingPayload:  []byte("ping"),
		watchdog:     newSubscriptionWatchdog(),
		metrics:      metrics.NewWSRecorder(venue),
	}
}

// Start connects and, on any read error, reconnects until Close is called.
// The first reconnect attempt after a read error is immediate; failed
// connect attempts are retried with exponential backoff and jitter.
func (w *wsConn) Start() {
	go w.runLoop()
}

func (w *wsConn) runLoop() {
	delay := reconnectInitialDelay
	firstConnect := true
	for {
		select {
		case <-w.done:
			return
		default:
		}

		reconnecting := !firstConnect
		firstConnect = false
		if err := w.connect(); err != nil {
			w.metrics.RecordConnection(false)
			w.log.Warn().Err(err).Dur("retry_in", delay).Msg("websocket connect failed")
			if !w.sleep(delay) {
				return
			}
			delay = nextBackoff(delay)
			continue
		}
		w.metrics.RecordConnection(true)
		if reconnecting {
			w.metrics.RecordReconnect()
		}

		delay = reconnectInitialDelay
		w.watchdog.arm(watchdogTimeout, func() {
			w.log.Warn().Msg("subscription confirmation watchdog expired, forcing reconnect")
			w.metrics.RecordDisconnect("watchdog_timeout")
			w.closeConn()
		})

		if w.onConnect != nil {
			w.onConnect(w)
		}

		w.readLoop()
		w.watchdog.disarm()

		select {
		case <-w.done:
			return
		default:
			w.metrics.RecordDisconnect("error")
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > reconnectMaxDelay {
		next = reconnectMaxDelay
	}
	jitter := time.Duration(float64(next) * 0.2 * (randFloat() - 0.5))
	return next + jitter
}

func (w *wsConn) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.done:
		return false
	}
}

func (w *wsConn) connect() error {
	conn, _, err := w.dialer.Dial(w.url, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	go w.pingLoop(conn)
	return nil
}

func (w *wsConn) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			cur := w.conn
			w.mu.Unlock()
			if cur != conn {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, w.pingPayload); err != nil {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *wsConn) readLoop() {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.log.Debug().Err(err).Msg("websocket read error")
			return
		}
		w.watchdog.touch()
		if w.onMessage != nil {
			w.onMessage(msg)
		}
	}
}

// WriteJSON serializes v and writes it to the live connection, if any.
func (w *wsConn) WriteJSON(v interface{}) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}
	return conn.WriteJSON(v)
}

func (w *wsConn) closeConn() {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close permanently shuts down the connection and its background loops.
func (w *wsConn) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	close(w.done)
	w.closeConn()
	return nil
}

func randFloat() float64 {
	return float64(time.Now().UnixNano()%1000) / 1000.0
}
