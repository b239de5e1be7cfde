// Package courier is a client-side HTTP request helper built from composable
// decorators over a pluggable transport.
//
// A Registry owns the active transport adapter and the global request
// configuration. Decorators (retry, bounded concurrency, caching,
// idempotency, coalescing, throttling, circuit breaking) all expose the same
// verb interface and re-resolve the active transport through the registry on
// every dispatch, so swapping the adapter or reconfiguring the registry at
// runtime affects decorators that were constructed earlier.
//
// # Quick Start
//
//	reg := courier.NewRegistry()
//	reg.SetGlobal(courier.GlobalConfig{
//	    BaseURL: "https://api.example.com",
//	    Timeout: 10 * time.Second,
//	})
//	reg.Inject(courier.NewAdapter(courier.AdapterPooled))
//
//	resp, err := reg.Requester().Get(ctx, "/articles", nil)
//
// # Decorators
//
// Each decorator wraps the configured-request accessor, not a concrete
// adapter, and composes freely:
//
//	cached := courier.NewCacheRequester(reg, courier.WithTTL(5*time.Minute))
//	retried := courier.NewRetryRequester(reg, 3)
//	bounded := courier.NewParallelRequester(reg, 8)
package courier
