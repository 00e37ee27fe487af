package metrics

// RecordUpstreamSubscribe records the subscription manager's first-subscriber
// upstream subscribe call.
func RecordUpstreamSubscribe(exchange string, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	KlineUpstreamSubscribeTotal.WithLabelValues(exchange, status).Inc()
}

// RecordBroadcastDrop records one kline-update frame dropped for backpressure.
func RecordBroadcastDrop(exchange string) {
	KlineBroadcastDropsTotal.WithLabelValues(exchange).Inc()
}

// SetSubscriptionGauges mirrors the Subscription Manager's live index sizes.
func SetSubscriptionGauges(activeKeys, activeClients int) {
	KlineSubscriptionKeysActive.Set(float64(activeKeys))
	KlineClientsActive.Set(float64(activeClients))
}
