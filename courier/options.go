package courier

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the HTTP transport tuning for the pooled adapter.
// Use DefaultConfig() as a starting point, then modify fields as needed.
type Config struct {
	// Timeout bounds the whole request lifecycle for dispatches that carry
	// no per-call or global timeout of their own. Zero means no limit.
	Timeout time.Duration

	// MaxIdleConns is the idle connection cap across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the idle connection cap per host. For a
	// client that mostly talks to one API this is the setting that
	// matters.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps total (idle + active) connections per host.
	// Zero means unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled.
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout caps the TLS handshake.
	TLSHandshakeTimeout time.Duration

	// DialTimeout caps TCP connection establishment.
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	KeepAlive time.Duration

	// DisableCompression disables transparent gzip negotiation.
	DisableCompression bool
}

// DefaultConfig returns balanced settings for typical API traffic.
func DefaultConfig() Config {
	return Config{
		Timeout:             15 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
	}
}

// LowLatencyConfig returns settings tuned for latency-sensitive callers:
// shorter timeouts, fast dial failover.
func LowLatencyConfig() Config {
	return Config{
		Timeout:             5 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		DialTimeout:         2 * time.Second,
		KeepAlive:           15 * time.Second,
	}
}

// buildPooledTransport creates an http.Transport from the configuration.
func buildPooledTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		DisableCompression:  cfg.DisableCompression,
	}
}

// adapterSettings collects adapter construction parameters.
type adapterSettings struct {
	config Config
	client *http.Client
	debug  bool
	log    zerolog.Logger
}

// AdapterOption configures an adapter created by NewAdapter.
type AdapterOption func(*adapterSettings)

// WithConfig sets the pooled adapter's transport configuration.
// It has no effect on AdapterBasic.
func WithConfig(c Config) AdapterOption {
	return func(s *adapterSettings) {
		s.config = c
	}
}

// WithHTTPClient overrides the underlying *http.Client entirely. The
// adapter kind's own client construction is skipped.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(s *adapterSettings) {
		s.client = c
	}
}

// WithDebugLogging enables request/response debug logging on the adapter.
func WithDebugLogging() AdapterOption {
	return func(s *adapterSettings) {
		s.debug = true
	}
}

// WithAdapterLogger sets the logger used for debug output.
func WithAdapterLogger(log zerolog.Logger) AdapterOption {
	return func(s *adapterSettings) {
		s.log = log
	}
}
