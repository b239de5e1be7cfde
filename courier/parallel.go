package courier

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// ParallelRequester bounds the number of dispatches in flight at once.
// Callers over the limit block until a slot frees, in arrival order, or
// until their context is done. The limit holds across goroutines because
// all of them share the one semaphore.
type ParallelRequester struct {
	reg  *Registry
	sem  *semaphore.Weighted
	next Transport
}

// ParallelOption configures a ParallelRequester.
type ParallelOption func(*ParallelRequester)

// WithParallelNext routes admitted dispatches through next instead of
// the registry's base requester, letting another decorator (retry, for
// example) run inside the concurrency bound.
func WithParallelNext(next Transport) ParallelOption {
	return func(d *ParallelRequester) {
		d.next = next
	}
}

// NewParallelRequester wraps reg's requester with a concurrency cap of
// maxParallel in-flight dispatches. Values below 1 are treated as 1,
// fully serialized dispatch.
func NewParallelRequester(reg *Registry, maxParallel int, opts ...ParallelOption) *ParallelRequester {
	if maxParallel < 1 {
		maxParallel = 1
	}
	d := &ParallelRequester{
		reg: reg,
		sem: semaphore.NewWeighted(int64(maxParallel)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do implements Transport.
func (d *ParallelRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	start := time.Now()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	d.reg.metrics.recordAdmissionWait(ctx, time.Since(start), []attribute.KeyValue{
		attribute.String("http.request.method", cfg.Method),
	})

	if d.next != nil {
		return d.next.Do(ctx, cfg)
	}
	return d.reg.Requester().Do(ctx, cfg)
}

// Get implements Transport.
func (d *ParallelRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *ParallelRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *ParallelRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *ParallelRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *ParallelRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}
