package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware collects HTTP request metrics for the push fabric's gin
// engine: records method, path, status, and latency on every request.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordAuthLogin records a login attempt outcome.
func RecordAuthLogin(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	AuthLoginTotal.WithLabelValues(status).Inc()
}

// RecordJWTValidation records a JWT validation outcome ("success", "failed",
// "expired", or "blacklisted").
func RecordJWTValidation(status string) {
	AuthJWTValidationTotal.WithLabelValues(status).Inc()
}
