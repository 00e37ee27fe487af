package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"priceguard/logger"
	"priceguard/metrics"
	"priceguard/xerr"
)

// restClient wraps go-resty/resty with retry/backoff and circuit-breaking
// for REST calls to exchanges: a 10-15s timeout, up to 3 attempts on
// transport or 429 errors, and a breaker that trips the adapter into
// fast-failing UpstreamUnavailable once a venue is clearly down, rather
// than queuing requests behind a dead host.
type restClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	venue   string
}

func newRESTClient(venue, baseURL string, requestsPerSecond float64) *restClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(12 * time.Second).
		SetRetryCount(0) // retries are driven explicitly below so 429s route through the breaker

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        venue,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Named("exchange").Warn().Str("venue", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &restClient{
		http:    c,
		breaker: cb,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		venue:   venue,
	}
}

// get issues a GET with up to 3 attempts (transport errors and 429/5xx are
// retried with exponential backoff), behind the venue's rate limiter and
// circuit breaker. Returns the raw response body or a typed
// UpstreamUnavailable error carrying the advisory status code.
func (c *restClient) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, path, query)
	})
	metrics.ExchangeAPIRequestDuration.WithLabelValues(c.venue, path).Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.ExchangeAPIRequestsTotal.WithLabelValues(c.venue, path, "circuit_open").Inc()
			return nil, xerr.UpstreamUnavailable(503, fmt.Sprintf("%s: circuit open", c.venue), err)
		}
		status := "failed"
		if xe, ok := xerr.As(err); ok && xe.Status == 429 {
			status = "rate_limited"
			metrics.ExchangeRateLimitHits.WithLabelValues(c.venue).Inc()
		}
		metrics.ExchangeAPIRequestsTotal.WithLabelValues(c.venue, path, status).Inc()
		return nil, err
	}
	metrics.ExchangeAPIRequestsTotal.WithLabelValues(c.venue, path, "success").Inc()
	return result.([]byte), nil
}

func (c *restClient) getWithRetry(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req := c.http.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			lastErr = xerr.UpstreamUnavailable(0, fmt.Sprintf("%s: transport error", c.venue), err)
		} else if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
			lastErr = xerr.UpstreamUnavailable(resp.StatusCode(), fmt.Sprintf("%s: status %d", c.venue, resp.StatusCode()), nil)
		} else if resp.StatusCode() >= 400 {
			return nil, xerr.UpstreamUnavailable(resp.StatusCode(), fmt.Sprintf("%s: status %d", c.venue, resp.StatusCode()), nil)
		} else {
			return resp.Body(), nil
		}

		if attempt < 3 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}
