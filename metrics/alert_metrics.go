package metrics

import "time"

// AlertSweepRecorder times one full sweep pass and records its outcome
// tallies.
type AlertSweepRecorder struct {
	start time.Time
}

func NewAlertSweepRecorder() *AlertSweepRecorder {
	return &AlertSweepRecorder{start: time.Now()}
}

func (r *AlertSweepRecorder) Done() {
	AlertSweepDuration.Observe(time.Since(r.start).Seconds())
}

// RecordTrigger records one alert firing.
func RecordTrigger(condition string) {
	AlertsTriggeredTotal.WithLabelValues(condition).Inc()
}

// RecordSweepError records one per-alert evaluation failure during a sweep.
func RecordSweepError(reason string) {
	AlertSweepErrorsTotal.WithLabelValues(reason).Inc()
}

// SetActiveAlerts sets the current count of active, untriggered alerts.
func SetActiveAlerts(count int) {
	AlertsActive.Set(float64(count))
}
