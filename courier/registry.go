package courier

import (
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kinetic-labs/courier-go/courier"

// Registry is the shared context for a family of requesters: the active
// transport slot plus the global request defaults. Decorators hold a
// *Registry rather than a transport so that an Inject or SetGlobal made
// after construction applies to every later dispatch.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	transport Transport
	global    GlobalConfig

	log     zerolog.Logger
	tracer  trace.Tracer
	metrics *metrics
	debug   bool
}

// registrySettings collects Registry construction parameters.
type registrySettings struct {
	log           zerolog.Logger
	tracerProv    trace.TracerProvider
	meterProv     metric.MeterProvider
	debug         bool
	global        GlobalConfig
	transport     Transport
	disableMetric bool
}

// RegistryOption configures a Registry created by NewRegistry.
type RegistryOption func(*registrySettings)

// WithLogger sets the registry's structured logger. The zero logger
// discards all output.
func WithLogger(log zerolog.Logger) RegistryOption {
	return func(s *registrySettings) {
		s.log = log
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// dispatch spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) RegistryOption {
	return func(s *registrySettings) {
		s.tracerProv = tp
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used for
// dispatch metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) RegistryOption {
	return func(s *registrySettings) {
		s.meterProv = mp
	}
}

// WithoutMetrics disables metric instrument registration entirely.
func WithoutMetrics() RegistryOption {
	return func(s *registrySettings) {
		s.disableMetric = true
	}
}

// WithDebug enables per-dispatch debug logging on requesters built from
// this registry.
func WithDebug() RegistryOption {
	return func(s *registrySettings) {
		s.debug = true
	}
}

// WithGlobal seeds the registry's global configuration.
func WithGlobal(g GlobalConfig) RegistryOption {
	return func(s *registrySettings) {
		s.global = g
	}
}

// WithTransport injects a transport at construction time, equivalent to
// calling Inject immediately after NewRegistry.
func WithTransport(t Transport) RegistryOption {
	return func(s *registrySettings) {
		s.transport = t
	}
}

// NewRegistry creates an empty registry. Until a transport is injected,
// every dispatch through its requesters fails with ErrNotConfigured.
func NewRegistry(opts ...RegistryOption) *Registry {
	s := registrySettings{
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.tracerProv == nil {
		s.tracerProv = otel.GetTracerProvider()
	}

	var m *metrics
	if !s.disableMetric {
		mp := s.meterProv
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		var err error
		m, err = newMetrics(mp.Meter(instrumentationName))
		if err != nil {
			// Metrics are best effort. Dispatch must not fail because an
			// instrument could not be registered.
			s.log.Warn().Err(err).Msg("metric registration failed, continuing without metrics")
			m = nil
		}
	}

	return &Registry{
		transport: s.transport,
		global:    s.global,
		log:       s.log,
		tracer:    s.tracerProv.Tracer(instrumentationName),
		metrics:   m,
		debug:     s.debug,
	}
}

// Inject installs t as the active transport, replacing any previous one.
// Requesters already built from this registry pick up the new transport
// on their next dispatch.
func (r *Registry) Inject(t Transport) {
	r.mu.Lock()
	r.transport = t
	r.mu.Unlock()

	r.log.Debug().Msg("transport injected")
}

// Active returns the currently injected transport, or ErrNotConfigured
// if none has been injected yet.
func (r *Registry) Active() (Transport, error) {
	r.mu.RLock()
	t := r.transport
	r.mu.RUnlock()

	if t == nil {
		return nil, ErrNotConfigured
	}
	return t, nil
}

// SetGlobal merges g into the registry's global configuration. Non-zero
// fields of g replace the stored values; Headers are combined key-wise
// with g's entries winning on conflict. Zero-valued fields of g leave
// the stored values untouched, so repeated application of the same
// update is idempotent.
func (r *Registry) SetGlobal(g GlobalConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.BaseURL != "" {
		r.global.BaseURL = g.BaseURL
	}
	if g.Timeout > 0 {
		r.global.Timeout = g.Timeout
	}
	if len(g.Headers) > 0 {
		if r.global.Headers == nil {
			r.global.Headers = make(map[string]string, len(g.Headers))
		}
		for k, v := range g.Headers {
			r.global.Headers[k] = v
		}
	}
}

// Global returns a snapshot of the current global configuration. The
// returned value is a copy; mutating it does not affect the registry.
func (r *Registry) Global() GlobalConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.global
	if r.global.Headers != nil {
		out.Headers = make(map[string]string, len(r.global.Headers))
		for k, v := range r.global.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// ResetGlobal clears the global configuration back to its zero value.
func (r *Registry) ResetGlobal() {
	r.mu.Lock()
	r.global = GlobalConfig{}
	r.mu.Unlock()
}

// Requester returns the registry's base requester: a Transport that
// resolves the active transport and applies the global defaults on
// every dispatch. Decorators wrap this, or wrap the registry directly.
func (r *Registry) Requester() *Requester {
	return &Requester{reg: r}
}
