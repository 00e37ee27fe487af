// Package push implements the Push Fabric: per-user rooms, authenticated
// bidirectional websocket sessions, and non-blocking, backpressure-aware
// event delivery. Each session gets a buffered outbound channel with a
// default-drop select for kline updates, and a bounded-blocking send for
// alert triggers that must not be dropped just because the queue is full.
package push

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"priceguard/alert"
	"priceguard/kline"
	"priceguard/logger"
	"priceguard/metrics"
)

// outboundQueueSize bounds each session's outbound buffer; a saturated
// queue is where kline-update frames start getting dropped.
const outboundQueueSize = 256

// Hub owns the set of live sessions, grouped into rooms by userID: exactly
// one room per user, shared by every device/tab they have connected.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session          // sessionID -> session
	rooms    map[string]map[string]*Session // userID -> sessionID -> session

	manager *kline.Manager
	log     zerolog.Logger
}

// NewHub builds an empty Hub. manager is wired so disconnecting a session
// can fan out OnClientDisconnect without the kline package importing push.
func NewHub(manager *kline.Manager) *Hub {
	h := &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		manager:  manager,
		log:      logger.Named("push"),
	}
	manager.SetBroadcaster(h)
	return h
}

// Join registers a newly-handshaken session into its user's room.
func (h *Hub) Join(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
	if h.rooms[s.UserID] == nil {
		h.rooms[s.UserID] = make(map[string]*Session)
	}
	h.rooms[s.UserID][s.ID] = s
	metrics.PushSessionsActive.Set(float64(len(h.sessions)))
}

// Leave removes a session, its room membership, and notifies the kline
// manager to unsubscribe every key the session held.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	if room, ok := h.rooms[s.UserID]; ok {
		delete(room, s.ID)
		if len(room) == 0 {
			delete(h.rooms, s.UserID)
		}
	}
	metrics.PushSessionsActive.Set(float64(len(h.sessions)))
	h.mu.Unlock()

	h.manager.OnClientDisconnect(s.ID)
	s.close()
}

// BroadcastKline implements kline.Broadcaster: non-blocking per-connection
// send; a saturated outbound queue drops the kline-update frame for that
// client alone, never the whole broadcast.
func (h *Hub) BroadcastKline(clientIDs []string, update kline.Update) {
	payload, err := json.Marshal(serverEvent{Event: "kline-update", Payload: update})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal kline-update failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range clientIDs {
		s, ok := h.sessions[id]
		if !ok {
			continue
		}
		if !s.trySend(payload) {
			metrics.RecordBroadcastDrop(update.Exchange)
		}
	}
}

// SendKlineError implements kline.Broadcaster's error path: delivered like
// any other server->client frame, best-effort.
func (h *Hub) SendKlineError(clientID, message string) {
	payload, err := json.Marshal(serverEvent{Event: "kline-error", Payload: map[string]string{"error": message}})
	if err != nil {
		return
	}
	h.mu.RLock()
	s, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if ok {
		s.trySend(payload)
	}
}

// EmitAlertTriggered implements alert.Emitter: delivered to every session of
// userID's room. Unlike kline-update, this frame must not be dropped for a
// live connection; if the connection is gone entirely the durable trigger
// record in the database is the system of record, so the event is simply
// not delivered.
func (h *Hub) EmitAlertTriggered(userID string, payload alert.TriggerPayload) {
	body, err := json.Marshal(serverEvent{Event: "alert-triggered", Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal alert-triggered failed")
		return
	}

	h.mu.RLock()
	room := h.rooms[userID]
	sessions := make([]*Session, 0, len(room))
	for _, s := range room {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		status := "delivered"
		if !s.sendBlocking(body) {
			status = "dropped_unresponsive"
		}
		metrics.PushAlertDeliveryTotal.WithLabelValues(status).Inc()
	}
}

// serverEvent is the envelope every server->client frame shares.
type serverEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}
