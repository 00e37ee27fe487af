package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// HTTP API Metrics
// ============================================================================

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priceguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// ============================================================================
// Authentication Metrics
// ============================================================================

var (
	AuthLoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_auth_login_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"}, // "success", "failed"
	)

	AuthJWTValidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_auth_jwt_validation_total",
			Help: "Total number of JWT validation attempts",
		},
		[]string{"status"}, // "success", "failed", "expired", "blacklisted"
	)
)

// ============================================================================
// Kline Subscription Manager Metrics
// ============================================================================

var (
	// KlineSubscriptionKeysActive distinct (exchange, symbol, interval,
	// market) keys with at least one subscriber right now.
	KlineSubscriptionKeysActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_kline_subscription_keys_active",
			Help: "Number of distinct kline keys with at least one subscriber",
		},
	)

	// KlineClientsActive distinct client sessions with at least one live
	// subscription.
	KlineClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_kline_clients_active",
			Help: "Number of client sessions with at least one kline subscription",
		},
	)

	// KlineUpstreamSubscribeTotal upstream (exchange adapter) subscribe
	// calls, fired exactly once per key on first-subscriber transition.
	KlineUpstreamSubscribeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_kline_upstream_subscribe_total",
			Help: "Total number of upstream subscribe calls issued by the subscription manager",
		},
		[]string{"exchange", "status"}, // "success", "failed"
	)

	// KlineBroadcastDropsTotal frames dropped by the push fabric due to a
	// saturated per-session queue.
	KlineBroadcastDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_kline_broadcast_drops_total",
			Help: "Total number of kline-update frames dropped due to backpressure",
		},
		[]string{"exchange"},
	)
)

// ============================================================================
// Price Alert Engine Metrics
// ============================================================================

var (
	AlertsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_alerts_active",
			Help: "Number of active, untriggered price alerts",
		},
	)

	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_alerts_triggered_total",
			Help: "Total number of price alerts triggered",
		},
		[]string{"condition"}, // "above", "below"
	)

	AlertSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "priceguard_alert_sweep_duration_seconds",
			Help:    "Duration of one full alert sweep pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
	)

	AlertSweepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_alert_sweep_errors_total",
			Help: "Total number of per-alert evaluation errors during a sweep",
		},
		[]string{"reason"}, // "upstream_unavailable", "symbol_unresolved", "consume_conflict"
	)
)

// ============================================================================
// Push Fabric Metrics
// ============================================================================

var (
	PushSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_push_sessions_active",
			Help: "Number of currently connected client websocket sessions",
		},
	)

	PushAlertDeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_push_alert_delivery_total",
			Help: "Total number of alert-triggered delivery attempts",
		},
		[]string{"status"}, // "delivered", "dropped_unresponsive"
	)
)

// ============================================================================
// Upstream Market Data / WebSocket Metrics
// ============================================================================

var (
	WSConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_ws_connections_total",
			Help: "Total number of upstream WebSocket connection attempts",
		},
		[]string{"exchange", "status"}, // status: "success", "failed"
	)

	WSDisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_ws_disconnects_total",
			Help: "Total number of upstream WebSocket disconnections",
		},
		[]string{"exchange", "reason"}, // reason: "error", "watchdog_timeout"
	)

	WSReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_ws_reconnects_total",
			Help: "Total number of upstream WebSocket reconnection attempts",
		},
		[]string{"exchange"},
	)

	WSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_ws_messages_total",
			Help: "Total number of upstream WebSocket messages received",
		},
		[]string{"exchange"},
	)

	WSActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "priceguard_ws_active_connections",
			Help: "Number of active upstream WebSocket connections",
		},
		[]string{"exchange"},
	)

	MarketDataLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "priceguard_market_data_lag_seconds",
			Help: "Lag between upstream candle open time and local receipt",
		},
		[]string{"exchange", "symbol"},
	)
)

// ============================================================================
// Database Metrics
// ============================================================================

var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // operation: "select", "insert", "update"; status: "success", "failed"
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priceguard_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"operation"},
	)
)

// ============================================================================
// Exchange REST API Metrics
// ============================================================================

var (
	ExchangeAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_exchange_api_requests_total",
			Help: "Total number of exchange REST API requests",
		},
		[]string{"exchange", "endpoint", "status"},
	)

	ExchangeAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priceguard_exchange_api_request_duration_seconds",
			Help:    "Exchange REST API request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"exchange", "endpoint"},
	)

	ExchangeRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priceguard_exchange_rate_limit_hits_total",
			Help: "Total number of exchange API rate limit hits (429)",
		},
		[]string{"exchange"},
	)
)

// ============================================================================
// System Metrics (Go runtime metrics are auto-collected by promhttp)
// ============================================================================

var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "priceguard_app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priceguard_app_start_timestamp_seconds",
			Help: "Application start timestamp in seconds",
		},
	)
)
