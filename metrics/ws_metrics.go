package metrics

import "time"

// WSRecorder records the lifecycle of one upstream exchange WebSocket
// connection: connect attempts, disconnects and their reason, reconnects.
type WSRecorder struct {
	Exchange string
}

func NewWSRecorder(exchange string) *WSRecorder {
	return &WSRecorder{Exchange: exchange}
}

func (r *WSRecorder) RecordConnection(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	WSConnectionsTotal.WithLabelValues(r.Exchange, status).Inc()
	if success {
		WSActiveConnections.WithLabelValues(r.Exchange).Inc()
	}
}

func (r *WSRecorder) RecordDisconnect(reason string) {
	WSDisconnectsTotal.WithLabelValues(r.Exchange, reason).Inc()
	WSActiveConnections.WithLabelValues(r.Exchange).Dec()
}

func (r *WSRecorder) RecordReconnect() {
	WSReconnectsTotal.WithLabelValues(r.Exchange).Inc()
}

func (r *WSRecorder) RecordMessage() {
	WSMessagesTotal.WithLabelValues(r.Exchange).Inc()
}

// RecordMarketDataLag records the gap between a candle's open (start) time
// and local receipt. Lag outside [0, 60s) is treated as a clock skew artifact
// and dropped rather than polluting the gauge.
func RecordMarketDataLag(exchange, symbol string, eventTimeMillis int64) {
	lag := float64(time.Now().UnixMilli()-eventTimeMillis) / 1000.0
	if lag >= 0 && lag < 60 {
		MarketDataLag.WithLabelValues(exchange, symbol).Set(lag)
	}
}
