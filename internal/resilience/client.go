package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
)

const (
	maxBodyBytes  = 32 << 20
	maxErrorBytes = 512
)

// GetHTTP performs one GET and classifies the outcome: transport failures and
// transient statuses become *TransientError, other non-2xx statuses become
// *ClientError. Caller cancellation is returned as is.
func GetHTTP(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &TransientError{Op: "GET " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if IsTransientStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
			return nil, &TransientError{Op: "GET " + url, StatusCode: resp.StatusCode}
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &ClientError{Op: "GET " + url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &TransientError{Op: "read " + url, Err: err}
	}
	return body, nil
}

// Client fetches from one upstream dependency through its breaker, retrying
// transient failures inside a single breaker call.
type Client struct {
	httpClient *http.Client
	policy     Policy
	breaker    *Breaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a resilient client. The breaker's name labels logs and metrics.
func NewClient(httpClient *http.Client, policy Policy, breaker *Breaker, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		policy:     policy,
		breaker:    breaker,
		logger:     logger,
		metrics:    metrics,
	}
}

// Breaker returns the dependency's breaker.
func (c *Client) Breaker() *Breaker { return c.breaker }

// Get fetches url and returns the body.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	dep := c.breaker.Name()
	start := time.Now()

	body, err := Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
			return GetHTTP(ctx, c.httpClient, url, header)
		}, func(attempt int, err error, delay time.Duration) {
			c.metrics.FetchRetries.WithLabelValues(dep).Inc()
			c.logger.Warn("upstream attempt failed, retrying",
				"dependency", dep,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		})
	})

	switch {
	case err == nil:
		c.metrics.FetchRequests.WithLabelValues(dep, "success").Inc()
		c.metrics.FetchDuration.WithLabelValues(dep).Observe(time.Since(start).Seconds())
	case IsCircuitOpen(err):
		c.metrics.FetchRequests.WithLabelValues(dep, "rejected").Inc()
	default:
		c.metrics.FetchRequests.WithLabelValues(dep, "error").Inc()
		c.metrics.FetchDuration.WithLabelValues(dep).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", dep, err)
	}
	return body, nil
}

// ReportStateChanges returns an OnStateChange callback that logs each
// transition and mirrors it into the breaker state gauge.
func ReportStateChanges(logger *slog.Logger, metrics *observability.Metrics) func(name string, from, to State) {
	return func(name string, from, to State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		level := slog.LevelInfo
		if to == StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "circuit breaker state changed",
			"dependency", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
}
