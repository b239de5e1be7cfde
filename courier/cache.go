package courier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultCacheTTL is the freshness window applied when no TTL option is
// given.
const DefaultCacheTTL = 5 * time.Minute

// KeyFunc derives the cache key for a request. It runs on the fully
// merged config, after the base URL and global headers are applied.
type KeyFunc func(cfg *RequestConfig) string

// DefaultKeyFunc keys on method and URL only. Requests differing solely
// in body or headers share an entry under this function; supply a custom
// KeyFunc when that matters.
func DefaultKeyFunc(cfg *RequestConfig) string {
	return fmt.Sprintf("%s-%s", cfg.Method, cfg.URL)
}

// ValidityFunc judges whether a stored entry may still be served. When
// set it replaces the default age check.
type ValidityFunc func(key string, cfg *RequestConfig, entry *CacheEntry) bool

// CacheRequester serves repeated requests from a Store while their entry
// is fresh, and refreshes over the network when it is not. Expiry is
// judged lazily at lookup time; nothing evicts entries in the
// background. Only successful responses are stored. Concurrent misses on
// one key each go to the network and overwrite in completion order; wrap
// with a CoalescingRequester when a single flight per key is wanted.
type CacheRequester struct {
	reg     *Registry
	store   Store
	keyFunc KeyFunc
	ttl     time.Duration
	isValid ValidityFunc
	now     func() time.Time
}

// CacheOption configures a CacheRequester.
type CacheOption func(*CacheRequester)

// WithKeyFunc sets the cache key derivation.
func WithKeyFunc(fn KeyFunc) CacheOption {
	return func(d *CacheRequester) {
		d.keyFunc = fn
	}
}

// WithTTL sets the freshness window. Entries older than ttl at lookup
// time are refetched.
func WithTTL(ttl time.Duration) CacheOption {
	return func(d *CacheRequester) {
		d.ttl = ttl
	}
}

// WithValidity replaces the age-based freshness check with a custom
// predicate over the key, the merged config and the stored entry.
func WithValidity(fn ValidityFunc) CacheOption {
	return func(d *CacheRequester) {
		d.isValid = fn
	}
}

// WithStore sets the backing store directly, with no reachability probe.
func WithStore(store Store) CacheOption {
	return func(d *CacheRequester) {
		d.store = store
	}
}

// WithDurableStore installs a durable store after probing it with a
// throwaway write and delete. If the probe fails the requester falls
// back to an in-process MemoryStore and carries on; the degradation is
// logged, not returned.
func WithDurableStore(store Store) CacheOption {
	return func(d *CacheRequester) {
		if err := probeStore(store); err != nil {
			d.reg.log.Warn().Err(err).Msg("durable cache store unreachable, falling back to memory")
			d.store = NewMemoryStore()
			return
		}
		d.store = store
	}
}

// WithClock overrides the time source. Tests use this to step entries
// across their freshness boundary without sleeping.
func WithClock(now func() time.Time) CacheOption {
	return func(d *CacheRequester) {
		d.now = now
	}
}

// NewCacheRequester wraps reg's requester with time-bounded response
// caching. The zero-option form keys on method plus URL, keeps entries
// for DefaultCacheTTL, and stores them in process memory.
func NewCacheRequester(reg *Registry, opts ...CacheOption) *CacheRequester {
	d := &CacheRequester{
		reg:     reg,
		store:   NewMemoryStore(),
		keyFunc: DefaultKeyFunc,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// probeStore verifies a store can complete a write and a delete.
func probeStore(store Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "courier-probe"
	if err := store.Set(ctx, key, &CacheEntry{Timestamp: time.Now()}); err != nil {
		return err
	}
	return store.Delete(ctx, key)
}

// Do implements Transport.
func (d *CacheRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	merged := d.reg.Requester().mergeConfig(cfg)
	key := d.keyFunc(merged)

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", merged.Method),
		attribute.String("url.full", merged.URL),
	}

	entry, ok, err := d.store.Get(ctx, key)
	if err != nil {
		d.reg.log.Warn().Err(err).Str("cache_key", key).Msg("cache read failed")
	}
	if ok && d.fresh(key, merged, entry) {
		d.reg.metrics.recordCacheHit(ctx, attrs)
		return entry.response(merged), nil
	}
	d.reg.metrics.recordCacheMiss(ctx, attrs)

	resp, err := d.reg.Requester().Do(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := d.store.Set(ctx, key, newCacheEntry(resp, d.now())); err != nil {
		// A write failure degrades to uncached behavior for this key.
		d.reg.log.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
	}
	return resp, nil
}

func (d *CacheRequester) fresh(key string, cfg *RequestConfig, entry *CacheEntry) bool {
	if d.isValid != nil {
		return d.isValid(key, cfg, entry)
	}
	return d.now().Sub(entry.Timestamp) < d.ttl
}

// Get implements Transport.
func (d *CacheRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *CacheRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *CacheRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *CacheRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *CacheRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}
