// Package kline implements the kline Subscription Manager: reference-
// counted multiplexing of many client subscriptions onto the small number
// of upstream streams each exchange.Adapter maintains. Two inverted indices
// under one mutex (clientID -> {Key}, Key -> {clientID}) make both
// "what does this client want" and "who wants this key" O(1) lookups.
package kline

import (
	"sync"

	"github.com/rs/zerolog"

	"priceguard/exchange"
	"priceguard/logger"
	"priceguard/metrics"
)

// Key identifies one upstream stream.
type Key struct {
	Exchange string
	Symbol   string
	Interval string
	Market   exchange.Market
}

// Update is the kline-update payload routed to subscribers.
type Update struct {
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Market   exchange.Market `json:"exchangeType"`
	Candle   exchange.Candle `json:"kline"`
}

// Broadcaster is the Push Fabric's half of the contract: the manager never
// touches a socket directly, only ever client IDs and payloads.
type Broadcaster interface {
	BroadcastKline(clientIDs []string, update Update)
	SendKlineError(clientID, message string)
}

// Manager owns the two inverted indices: clientID -> {Key} and
// Key -> {clientID}. A single mutex guards both; critical sections are
// hash-set operations, plus a copy of one client or subscriber set where a
// snapshot is taken (OnCandle, OnClientDisconnect).
type Manager struct {
	mu          sync.Mutex
	byClient    map[string]map[Key]struct{}
	byKey       map[Key]map[string]struct{}
	registry    *exchange.Registry
	broadcaster Broadcaster
	log         zerolog.Logger
}

// NewManager builds an empty Manager. The broadcaster is nil until
// SetBroadcaster wires the push fabric in after construction, breaking the
// push<->kline construction cycle the same way exchange.Sink breaks the
// adapter<->manager cycle.
func NewManager(registry *exchange.Registry) *Manager {
	return &Manager{
		byClient: make(map[string]map[Key]struct{}),
		byKey:    make(map[Key]map[string]struct{}),
		registry: registry,
		log:      logger.Named("kline"),
	}
}

// SetBroadcaster wires the Push Fabric in after construction.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcaster = b
}

// Subscribe adds clientID to Key's subscriber set. On the 0->1 transition it
// calls subscribeKline on the owning adapter; a failure rolls back both
// indices and is returned so the caller can emit kline-error.
func (m *Manager) Subscribe(clientID string, key Key) error {
	m.mu.Lock()
	first := m.addNoLock(clientID, key)
	m.mu.Unlock()
	m.reportGauges()

	if !first {
		return nil
	}

	a, err := m.registry.Get(key.Exchange)
	if err != nil {
		m.rollback(clientID, key)
		return err
	}
	if err := a.SubscribeKline(key.Symbol, key.Market, key.Interval); err != nil {
		m.rollback(clientID, key)
		metrics.RecordUpstreamSubscribe(key.Exchange, false)
		return err
	}
	metrics.RecordUpstreamSubscribe(key.Exchange, true)
	return nil
}

// addNoLock must be called with m.mu held.
func (m *Manager) addNoLock(clientID string, key Key) (first bool) {
	if m.byClient[clientID] == nil {
		m.byClient[clientID] = make(map[Key]struct{})
	}
	m.byClient[clientID][key] = struct{}{}

	subs := m.byKey[key]
	if subs == nil {
		subs = make(map[string]struct{})
		m.byKey[key] = subs
	}
	_, existed := subs[clientID]
	subs[clientID] = struct{}{}
	return len(subs) == 1 && !existed
}

func (m *Manager) rollback(clientID string, key Key) {
	m.mu.Lock()
	delete(m.byClient[clientID], key)
	if len(m.byClient[clientID]) == 0 {
		delete(m.byClient, clientID)
	}
	delete(m.byKey[key], clientID)
	if len(m.byKey[key]) == 0 {
		delete(m.byKey, key)
	}
	m.mu.Unlock()
	m.reportGauges()
}

// Unsubscribe removes clientID from Key's subscriber set. On the 1->0
// transition it calls unsubscribeKline on the owning adapter. Missing
// entries are no-ops.
func (m *Manager) Unsubscribe(clientID string, key Key) {
	m.mu.Lock()
	last := m.removeNoLock(clientID, key)
	m.mu.Unlock()
	m.reportGauges()

	if !last {
		return
	}
	a, err := m.registry.Get(key.Exchange)
	if err != nil {
		return
	}
	if err := a.UnsubscribeKline(key.Symbol, key.Market, key.Interval); err != nil {
		m.log.Warn().Err(err).Str("exchange", key.Exchange).Str("symbol", key.Symbol).Msg("upstream unsubscribe failed")
	}
}

// removeNoLock must be called with m.mu held.
func (m *Manager) removeNoLock(clientID string, key Key) (last bool) {
	if _, ok := m.byClient[clientID][key]; !ok {
		return false
	}
	delete(m.byClient[clientID], key)
	if len(m.byClient[clientID]) == 0 {
		delete(m.byClient, clientID)
	}

	subs, ok := m.byKey[key]
	if !ok {
		return false
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(m.byKey, key)
		return true
	}
	return false
}

// OnClientDisconnect unsubscribes every Key the client held.
func (m *Manager) OnClientDisconnect(clientID string) {
	m.mu.Lock()
	keys := make([]Key, 0, len(m.byClient[clientID]))
	for k := range m.byClient[clientID] {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, k := range keys {
		m.Unsubscribe(clientID, k)
	}
}

// OnCandle is the callback wired as every adapter's exchange.Sink. It looks
// up Key's subscribers, takes a snapshot under the lock, and broadcasts
// outside the lock, so a slow or blocked broadcast never holds up the next
// subscribe/unsubscribe call.
func (m *Manager) OnCandle(exchangeName, canonicalSymbol, interval string, market exchange.Market, c exchange.Candle) {
	key := Key{Exchange: exchangeName, Symbol: canonicalSymbol, Interval: interval, Market: market}

	m.mu.Lock()
	subs := m.byKey[key]
	if len(subs) == 0 {
		m.mu.Unlock()
		return // racing unsubscribe; drop
	}
	clientIDs := make([]string, 0, len(subs))
	for id := range subs {
		clientIDs = append(clientIDs, id)
	}
	broadcaster := m.broadcaster
	m.mu.Unlock()

	if broadcaster == nil {
		return
	}
	broadcaster.BroadcastKline(clientIDs, Update{
		Exchange: exchangeName,
		Symbol:   canonicalSymbol,
		Interval: interval,
		Market:   market,
		Candle:   c,
	})
}

// reportGauges refreshes the live index-size gauges. Called after mutating
// operations rather than on a timer, since the indices already change under
// a lock that makes a consistent snapshot cheap.
func (m *Manager) reportGauges() {
	m.mu.Lock()
	keys := len(m.byKey)
	clients := len(m.byClient)
	m.mu.Unlock()
	metrics.SetSubscriptionGauges(keys, clients)
}

// SubscriberCount reports the number of clients currently subscribed to key,
// for tests and diagnostics.
func (m *Manager) SubscriberCount(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey[key])
}

// ClientKeyCount reports the number of keys a given client holds.
func (m *Manager) ClientKeyCount(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byClient[clientID])
}
