// Package api exposes the business modules (articles, users) bound to a
// configured courier registry. It is the initialization entry point for
// callers that want ready-made endpoint wrappers instead of assembling
// decorators by hand.
package api

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetic-labs/courier-go/courier"
)

// Options configures the API at initialization and at reconfiguration.
// Zero-valued fields are left as they are, so the same shape works for
// both a full New and a partial Reconfigure.
type Options struct {
	// BaseURL is prefixed onto every module's relative paths.
	BaseURL string

	// Headers are default headers applied to every request.
	Headers map[string]string

	// Timeout is the default per-request timeout.
	Timeout time.Duration

	// Adapter is the transport to inject. Defaults to a pooled net/http
	// adapter. Ignored by Reconfigure.
	Adapter courier.Transport

	// Logger receives module-level diagnostics. Defaults to a no-op
	// logger. Ignored by Reconfigure.
	Logger zerolog.Logger

	// RetryAttempts bounds dispatch attempts on retried endpoints.
	// Defaults to 3. Ignored by Reconfigure.
	RetryAttempts int

	// MaxParallel caps concurrent search dispatches. Defaults to 4.
	// Ignored by Reconfigure.
	MaxParallel int

	// ListCacheTTL is the freshness window for cached list endpoints.
	// Defaults to courier.DefaultCacheTTL. Ignored by Reconfigure.
	ListCacheTTL time.Duration
}

// API bundles the business modules over one shared registry.
type API struct {
	Articles *ArticlesService
	Users    *UsersService

	reg *courier.Registry
	log zerolog.Logger
}

// New applies opts to a fresh registry, injects the transport adapter,
// and returns the business modules bound to it.
func New(opts Options) *API {
	log := opts.Logger

	reg := courier.NewRegistry(courier.WithLogger(log))
	reg.SetGlobal(courier.GlobalConfig{
		BaseURL: opts.BaseURL,
		Headers: opts.Headers,
		Timeout: opts.Timeout,
	})

	adapter := opts.Adapter
	if adapter == nil {
		adapter = courier.NewAdapter(courier.AdapterPooled)
	}
	reg.Inject(adapter)

	retryAttempts := opts.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}

	cacheOpts := []courier.CacheOption{}
	if opts.ListCacheTTL > 0 {
		cacheOpts = append(cacheOpts, courier.WithTTL(opts.ListCacheTTL))
	}

	return &API{
		Articles: newArticlesService(reg, log, retryAttempts, maxParallel, cacheOpts),
		Users:    newUsersService(reg, log, cacheOpts),
		reg:      reg,
		log:      log,
	}
}

// Reconfigure shallow-merges opts into the registry's global
// configuration. Every module picks up the change on its next dispatch,
// including decorators built at New time.
func (a *API) Reconfigure(opts Options) {
	a.reg.SetGlobal(courier.GlobalConfig{
		BaseURL: opts.BaseURL,
		Headers: opts.Headers,
		Timeout: opts.Timeout,
	})
	a.log.Debug().Str("base_url", opts.BaseURL).Msg("api reconfigured")
}

// Registry exposes the underlying registry for callers that need to
// inject a different adapter or build extra decorators.
func (a *API) Registry() *courier.Registry {
	return a.reg
}
