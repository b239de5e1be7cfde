package courier

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// ThrottleConfig configures client-side rate limiting.
type ThrottleConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	// This allows brief spikes above the rate limit.
	Burst int

	// WaitOnLimit determines behavior when the limit is hit.
	// If true, requests wait for a token (respecting context deadline).
	// If false, requests immediately return ErrRateLimited.
	WaitOnLimit bool
}

// DefaultThrottleConfig returns a sensible default throttle configuration.
// 100 requests per second with a burst of 10.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ThrottleRequester enforces a token-bucket request rate in front of the
// registry's requester. All goroutines sharing the requester share one
// bucket.
type ThrottleRequester struct {
	reg     *Registry
	limiter *rate.Limiter
	wait    bool
}

// NewThrottleRequester wraps reg's requester with rate limiting. A
// non-positive RequestsPerSecond disables throttling entirely.
func NewThrottleRequester(reg *Registry, cfg ThrottleConfig) *ThrottleRequester {
	d := &ThrottleRequester{
		reg:  reg,
		wait: cfg.WaitOnLimit,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return d
}

// Do implements Transport.
func (d *ThrottleRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	if d.limiter != nil {
		if d.wait {
			if err := d.limiter.Wait(ctx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return nil, err
				}
				return nil, ErrRateLimited
			}
		} else if !d.limiter.Allow() {
			return nil, ErrRateLimited
		}
	}

	return d.reg.Requester().Do(ctx, cfg)
}

// Get implements Transport.
func (d *ThrottleRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *ThrottleRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *ThrottleRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *ThrottleRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *ThrottleRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}

// Stats provides visibility into the throttle's token bucket.
type ThrottleStats struct {
	// Limit is the maximum rate per second.
	Limit float64
	// Burst is the maximum burst size.
	Burst int
	// TokensAvailable is the current number of tokens.
	TokensAvailable float64
}

// Stats returns the current token bucket state, or the zero value when
// throttling is disabled.
func (d *ThrottleRequester) Stats() ThrottleStats {
	if d.limiter == nil {
		return ThrottleStats{}
	}
	return ThrottleStats{
		Limit:           float64(d.limiter.Limit()),
		Burst:           d.limiter.Burst(),
		TokensAvailable: d.limiter.Tokens(),
	}
}
