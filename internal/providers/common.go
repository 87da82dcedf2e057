// Package providers holds the HTTP clients for every outbound signal:
// places, personalization, geocoding, travel matrices, weather, traffic,
// timezone and calendar feeds.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

// HTTPClientConfig bundles the HTTP client and the local request budget
// shared by all providers. The client's Timeout is the hard per-call deadline.
type HTTPClientConfig struct {
	Client *http.Client
	// RequestsPerSecond caps calls per provider. Zero disables the limiter.
	RequestsPerSecond float64
}

// DefaultRequestTimeout is the hard deadline on outbound calls.
const DefaultRequestTimeout = 8 * time.Second

// NewHTTPClient returns the shared outbound client.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

var (
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	// errLocalBudget means the call never left the process.
	errLocalBudget  = errors.New("local request budget exhausted")
)

// endpoint is the resilience envelope around one upstream API.
type endpoint struct {
	name    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newEndpoint(name string, cfg HTTPClientConfig) *endpoint {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &endpoint{name: name, httpCfg: cfg, circuit: cb, limiter: limiter}
}

// do executes one request through the limiter and circuit breaker. There are
// no retries here. The caller's cancellation is detached; the client timeout
// bounds the call instead.
func (e *endpoint) do(ctx context.Context, buildRequest func(context.Context) (*http.Request, error)) (*http.Response, error) {
	if e.httpCfg.Client == nil {
		return nil, fmt.Errorf("%s: %w", e.name, errNoHTTPClient)
	}
	if err := e.wait(ctx); err != nil {
		metrics.RecordProviderRequest(e.name, domain.Classify(err), 0)
		return nil, err
	}

	req, err := buildRequest(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.circuit.Execute(func() (interface{}, error) {
		resp, execErr := e.httpCfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return nil, domain.ErrRateLimited
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp)
			return nil, fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
		}

		return resp, nil
	})

	if err != nil {
		err = e.classify(err)
		metrics.RecordProviderRequest(e.name, domain.Classify(err), time.Since(start))
		return nil, err
	}
	metrics.RecordProviderRequest(e.name, domain.Classify(nil), time.Since(start))

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type from circuit breaker", e.name)
	}
	return resp, nil
}

// wait paces the call against the local budget. The wait is bounded by the
// client timeout, so a call that cannot get a slot in time fails as a timeout.
func (e *endpoint) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	timeout := e.httpCfg.Client.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := e.limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("%s: %w: %w", e.name, errLocalBudget, domain.ErrTimeout)
	}
	return nil
}

// getJSON performs the request and decodes a 2xx body into out.
func (e *endpoint) getJSON(ctx context.Context, buildRequest func(context.Context) (*http.Request, error), out any) error {
	resp, err := e.do(ctx, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %v", e.name, domain.ErrUpstream, err)
	}
	return nil
}

func (e *endpoint) classify(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%s: %w: %w", e.name, domain.ErrUpstream, errCircuitOpen)
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrUpstream):
		return fmt.Errorf("%s: %w", e.name, err)
	case isTimeout(err):
		return fmt.Errorf("%s: %w: %v", e.name, domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %v", e.name, domain.ErrUpstream, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func missingCredential(provider string) error {
	return fmt.Errorf("%s: %w", provider, domain.ErrMissingCredential)
}
