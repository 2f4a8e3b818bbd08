package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-display-service/internal/observability"
)

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	HalfOpenRequests uint32
	Timeout          time.Duration
}

// NewBreaker builds a circuit breaker for a provider. The breaker only counts transport
// errors, 429s and 5xx as failures; a 404 for an unknown city does not trip it.
// onChange may be nil.
func NewBreaker(provider string, cfg BreakerConfig, onChange func(from, to string)) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if onChange != nil {
				onChange(from.String(), to.String())
			}
		},
	})
}

// transport performs GET requests with query parameters against one provider endpoint.
// It records provider metrics and never retries.
type transport struct {
	provider string
	url      string
	rc       *resty.Client
	breaker  *gobreaker.CircuitBreaker
}

func newTransport(provider, url string, timeout time.Duration) *transport {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "weather-display-service")
	return &transport{provider: provider, url: url, rc: rc}
}

// get returns the raw response for any status the breaker does not treat as failure.
// Callers map non-2xx statuses themselves.
func (t *transport) get(ctx context.Context, params map[string]string) (*resty.Response, error) {
	start := time.Now()
	call := func() (*resty.Response, error) {
		req := t.rc.R().SetContext(ctx).SetQueryParams(params)
		if corrID := observability.CorrelationID(ctx); corrID != "" {
			req.SetHeader("X-Correlation-ID", corrID)
		}
		resp, err := req.Get(t.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request timeout: %w", ctx.Err())
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		if code := resp.StatusCode(); code == 429 || code >= 500 {
			return resp, statusError(code)
		}
		return resp, nil
	}

	var resp *resty.Response
	var err error
	if t.breaker == nil {
		resp, err = call()
	} else {
		var out interface{}
		out, err = t.breaker.Execute(func() (interface{}, error) {
			return call()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.ProviderCallsTotal.WithLabelValues(t.provider, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, t.provider)
		}
		resp, _ = out.(*resty.Response)
	}

	status := "error"
	if resp != nil {
		status = statusLabel(resp.StatusCode())
	}
	observability.ProviderCallsTotal.WithLabelValues(t.provider, status).Inc()
	observability.ProviderCallDuration.WithLabelValues(t.provider, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return resp, nil
}
