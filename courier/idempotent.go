package courier

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultIdempotencyTTL is how long a memoized response is replayed
// before the request is dispatched again.
const DefaultIdempotencyTTL = time.Hour

// IdempotencyKey derives the memoization key from the full request
// identity: method, URL, query parameters and body. Map-typed params and
// bodies serialize with sorted keys, so two configs that differ only in
// map iteration order produce the same key.
func IdempotencyKey(cfg *RequestConfig) string {
	parts := []string{
		cfg.Method,
		cfg.URL,
		stableJSON(cfg.Params),
		stableJSON(cfg.Body),
	}
	return strings.Join(parts, "|")
}

func stableJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		// Unserializable bodies still need a deterministic component.
		return "unserializable"
	}
	return string(data)
}

// NewIdempotentRequester wraps reg's requester with request memoization:
// a repeat of an identical request within the TTL replays the stored
// response without touching the network. Identity covers method, URL,
// params and body, so changing any of them forms a new entry. Extra
// options are applied on top of the memoization defaults; a WithTTL or
// WithKeyFunc among them overrides the preset.
func NewIdempotentRequester(reg *Registry, opts ...CacheOption) *CacheRequester {
	preset := []CacheOption{
		WithKeyFunc(IdempotencyKey),
		WithTTL(DefaultIdempotencyTTL),
	}
	return NewCacheRequester(reg, append(preset, opts...)...)
}
