package courier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// CoalesceKey creates a deduplication key for a request.
// Key = SHA256(method + URL + sorted params + body hash).
func CoalesceKey(cfg *RequestConfig) string {
	var sortedParams []string
	for k, v := range cfg.Params {
		sortedParams = append(sortedParams, k+"="+v)
	}
	sort.Strings(sortedParams)

	keyParts := []string{
		cfg.Method,
		cfg.URL,
		strings.Join(sortedParams, "&"),
	}

	if body := stableJSON(cfg.Body); body != "" {
		bodyHash := sha256.Sum256([]byte(body))
		keyParts = append(keyParts, hex.EncodeToString(bodyHash[:]))
	}

	return hashString(strings.Join(keyParts, "|"))
}

// hashString creates a SHA256 hash of the input string.
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// CoalescingRequester collapses concurrent identical requests into a
// single network dispatch whose response is shared by every waiter. This
// is the counterpart to the cache's last-write-wins stampede behavior:
// stack this above a CacheRequester when a cold key must fetch once.
//
// Only concurrent duplicates coalesce; a request arriving after the
// shared flight completes dispatches anew.
type CoalescingRequester struct {
	reg     *Registry
	group   singleflight.Group
	keyFunc KeyFunc
}

// NewCoalescingRequester wraps reg's requester with in-flight request
// deduplication keyed by CoalesceKey.
func NewCoalescingRequester(reg *Registry) *CoalescingRequester {
	return &CoalescingRequester{
		reg:     reg,
		keyFunc: CoalesceKey,
	}
}

// Do implements Transport.
func (d *CoalescingRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	merged := d.reg.Requester().mergeConfig(cfg)
	key := d.keyFunc(merged)

	v, err, shared := d.group.Do(key, func() (any, error) {
		return d.reg.Requester().Do(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		d.reg.log.Debug().Str("coalesce_key", key).Msg("request coalesced")
	}
	return v.(*Response), nil
}

// Get implements Transport.
func (d *CoalescingRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *CoalescingRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *CoalescingRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *CoalescingRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *CoalescingRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}
