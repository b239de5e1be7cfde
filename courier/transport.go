package courier

import (
	"context"
)

// Transport is the uniform verb interface implemented by every adapter and
// every decorator. Adapters dispatch over the wire; decorators wrap the
// configured-request accessor and add behavior around dispatch.
type Transport interface {
	// Do dispatches a fully built RequestConfig.
	Do(ctx context.Context, cfg *RequestConfig) (*Response, error)

	// Get issues a GET request. cfg may be nil.
	Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error)

	// Post issues a POST request with an optional body. cfg may be nil.
	Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error)

	// Put issues a PUT request with an optional body. cfg may be nil.
	Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error)

	// Delete issues a DELETE request. cfg may be nil.
	Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error)

	// Patch issues a PATCH request with an optional body. cfg may be nil.
	Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error)
}

// AdapterKind selects a concrete transport adapter implementation.
// Adapters are chosen by tag at startup and can be swapped at runtime via
// Registry.Inject.
type AdapterKind int

const (
	// AdapterPooled is the production adapter with a tuned connection pool.
	AdapterPooled AdapterKind = iota

	// AdapterBasic is a minimal adapter on the default transport, useful
	// for short-lived tools and tests.
	AdapterBasic
)

// NewAdapter creates a transport adapter of the given kind.
//
// Example:
//
//	cfg := courier.LowLatencyConfig()
//	t := courier.NewAdapter(courier.AdapterPooled, courier.WithConfig(cfg))
func NewAdapter(kind AdapterKind, opts ...AdapterOption) Transport {
	return newHTTPAdapter(kind, opts...)
}
