package courier

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
)

// RetryRequester re-dispatches failed requests with a wait between
// attempts. Each attempt goes through the registry's base requester, so
// a transport swapped in mid-sequence serves the remaining attempts.
//
// Two failures are never retried: a registry with no transport injected,
// and a caller context that is already done. A per-request timeout on a
// single attempt is an ordinary failure and is retried.
type RetryRequester struct {
	reg         *Registry
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

// RetryOption configures a RetryRequester.
type RetryOption func(*RetryRequester)

// WithRetryBackOff sets the factory producing the wait schedule for a
// dispatch. A fresh schedule is created per dispatch, so the factory
// must not return a shared instance.
func WithRetryBackOff(factory func() backoff.BackOff) RetryOption {
	return func(d *RetryRequester) {
		d.newBackOff = factory
	}
}

// NewRetryRequester wraps reg's requester with up to maxAttempts total
// dispatch attempts. Values below 1 are treated as 1, a single attempt
// with no retries. The default wait schedule is linear: 1s, 2s, 3s, ...
func NewRetryRequester(reg *Registry, maxAttempts int, opts ...RetryOption) *RetryRequester {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	d := &RetryRequester{
		reg:         reg,
		maxAttempts: maxAttempts,
		newBackOff: func() backoff.BackOff {
			return NewLinearBackOff(time.Second)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do implements Transport.
func (d *RetryRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", cfg.Method),
		attribute.String("url.full", cfg.URL),
	}

	attempt := 0
	permanent := false
	operation := func() (*Response, error) {
		attempt++
		resp, err := d.reg.Requester().Do(ctx, cfg)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrNotConfigured) {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		if attempt < d.maxAttempts {
			d.reg.metrics.recordRetryAttempt(ctx, attrs, attempt)
			d.reg.log.Debug().
				Int("attempt", attempt).
				Int("max_attempts", d.maxAttempts).
				Str("url", cfg.URL).
				Err(err).
				Msg("retrying request")
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(uint(d.maxAttempts)),
	)
	if err != nil {
		// A permanent failure stopped the sequence early; only a genuinely
		// spent attempt budget counts as exhaustion.
		if attempt >= d.maxAttempts && !permanent {
			d.reg.metrics.recordRetryExhausted(ctx, attrs)
		}
		return nil, err
	}
	return resp, nil
}

// Get implements Transport.
func (d *RetryRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *RetryRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *RetryRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *RetryRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *RetryRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}
