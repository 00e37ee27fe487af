// Package alert implements the price alert engine: a periodic sweep over
// active price alerts, crossing detection with an anti-false-positive
// creation-time guard, per-alertID dedup, and atomic consume. A pure
// evaluate-then-act loop driven by a ticker, the same shape as any
// periodic background task, just evaluating price crossings instead of
// trading signals.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"priceguard/exchange"
	"priceguard/logger"
	"priceguard/metrics"
	"priceguard/resolver"
	"priceguard/store"
	"priceguard/xerr"
)

// Condition is the derived crossing direction: below if initialPrice was
// above the target, else above.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// TriggerPayload is what the Push Fabric transports to the user.
type TriggerPayload struct {
	ID              string    `json:"id"`
	AlertID         string    `json:"alertId"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Triggered       bool      `json:"triggered"`
	TriggeredAt     int64     `json:"triggeredAt"`
	CurrentPrice    float64   `json:"currentPrice"`
	TargetValue     float64   `json:"targetValue"`
	Condition       Condition `json:"condition"`
	Symbol          string    `json:"symbol"`
	CanonicalSymbol string    `json:"canonicalSymbol"`
	AlertType       string    `json:"alertType"`
	InitialPrice    float64   `json:"initialPrice,omitempty"`
}

// Emitter is the Push Fabric's half of the contract: deliver a trigger to
// every session of a userID's room.
type Emitter interface {
	EmitAlertTriggered(userID string, payload TriggerPayload)
}

// Store is the persistence contract the engine needs; store.Store
// satisfies it directly.
type Store interface {
	ActiveAlerts() ([]*store.Alert, error)
	ConsumeAlert(id string) error
}

// Engine runs the periodic sweep: load active alerts, evaluate each against
// its current price, emit and consume on crossing.
type Engine struct {
	store    Store
	registry *exchange.Registry
	emitter  Emitter
	interval time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{} // alertIDs currently being swept by this process
	previous map[string]float64  // alertID -> previousObserved, falls back to initialPrice

	log zerolog.Logger
}

// NewEngine builds an Engine. interval is the sweep period, typically 5-10s:
// short enough that a crossing is caught within a few ticks, long enough not
// to hammer upstream tickers.
func NewEngine(st Store, registry *exchange.Registry, emitter Emitter, interval time.Duration) *Engine {
	return &Engine{
		store:    st,
		registry: registry,
		emitter:  emitter,
		interval: interval,
		inFlight: make(map[string]struct{}),
		previous: make(map[string]float64),
		log:      logger.Named("alert"),
	}
}

// Run blocks, ticking every e.interval until ctx is cancelled. Each tick is
// also triggerable on demand via SweepOnce, e.g. from a client's "check now"
// request.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs one full pass over active alerts. Each alert is
// evaluated independently; a failure on one alert never aborts the sweep for
// the rest.
func (e *Engine) SweepOnce(ctx context.Context) {
	rec := metrics.NewAlertSweepRecorder()
	defer rec.Done()

	alerts, err := e.store.ActiveAlerts()
	if err != nil {
		e.log.Error().Err(err).Msg("sweep: failed to load active alerts")
		return
	}
	metrics.SetActiveAlerts(len(alerts))

	for _, a := range alerts {
		e.evaluateOne(ctx, a)
	}
}

func (e *Engine) evaluateOne(ctx context.Context, a *store.Alert) {
	if !e.claim(a.ID) {
		return // a concurrent sweep already holds this alertID
	}
	defer e.release(a.ID)

	if !a.InitialPrice.Valid {
		return // no initialPrice recorded; cannot derive a condition
	}
	target := a.TargetValue
	initial := a.InitialPrice.Float64
	eps := exchange.Tolerance(target)

	condition := deriveCondition(initial, target)

	adapter, err := e.registry.Get(a.Exchange)
	if err != nil {
		return // unknown exchange; never persisted by a correct creation API, but tolerate it
	}

	market := exchange.Market(a.Market)
	res, err := resolver.Resolve(ctx, adapter, market, a.Symbol())
	if err != nil {
		if xerr.Is(err, xerr.KindUpstreamUnavailable) {
			metrics.RecordSweepError("upstream_unavailable")
			return // recoverable: skip this tick, retry next sweep
		}
		metrics.RecordSweepError("symbol_unresolved")
		return // SymbolUnresolved: skip this tick, no state change
	}
	current := res.Price

	previous, ok := e.previousObserved(a.ID)
	if !ok {
		previous = initial
	}

	if !hasReached(previous, current, target, condition, eps) {
		e.setPreviousObserved(a.ID, current)
		return
	}

	if err := e.store.ConsumeAlert(a.ID); err != nil {
		if err == store.ErrAlertAlreadyConsumed {
			metrics.RecordSweepError("consume_conflict")
			return // Conflict: a concurrent consumer won; drop silently
		}
		e.log.Error().Err(err).Str("alertID", a.ID).Msg("sweep: consume failed")
		return // propagate-by-abort; do not touch in-memory state, next sweep retries
	}
	metrics.RecordTrigger(string(condition))

	e.clearPreviousObserved(a.ID)
	if e.emitter != nil {
		canonical := exchange.Normalize(a.Symbol())
		if base := resolver.StripQuote(canonical); base != "" {
			canonical = base
		}
		e.emitter.EmitAlertTriggered(a.UserID, TriggerPayload{
			ID:              a.ID,
			AlertID:         a.ID,
			Name:            a.Name,
			Description:     a.Description,
			Triggered:       true,
			TriggeredAt:     time.Now().Unix(),
			CurrentPrice:    current,
			TargetValue:     target,
			Condition:       condition,
			Symbol:          a.Symbol(),
			CanonicalSymbol: canonical,
			AlertType:       "price",
			InitialPrice:    initial,
		})
	}
}

// deriveCondition recomputes the crossing direction from the creation-time
// snapshot rather than trusting the stored condition field, which a buggy or
// stale writer could have gotten wrong.
func deriveCondition(initial, target float64) Condition {
	if initial > target {
		return ConditionBelow
	}
	return ConditionAbove
}

// hasReached reports whether price moved from not-yet-crossed to crossed
// between the previous and current observation, within tolerance eps.
func hasReached(previous, current, target float64, condition Condition, eps float64) bool {
	switch condition {
	case ConditionAbove:
		return previous < target-eps && current >= target-eps
	case ConditionBelow:
		return previous > target+eps && current <= target+eps
	default:
		return false
	}
}

func (e *Engine) claim(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[alertID]; busy {
		return false
	}
	e.inFlight[alertID] = struct{}{}
	return true
}

func (e *Engine) release(alertID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, alertID)
}

func (e *Engine) previousObserved(alertID string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.previous[alertID]
	return p, ok
}

func (e *Engine) setPreviousObserved(alertID string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previous[alertID] = price
}

func (e *Engine) clearPreviousObserved(alertID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.previous, alertID)
}
