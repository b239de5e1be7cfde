package courier

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// CacheEntry is the stored form of a successful response. It carries the
// write timestamp so freshness can be judged at lookup time.
type CacheEntry struct {
	Status     int                 `json:"status"`
	StatusText string              `json:"statusText"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       []byte              `json:"body,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// newCacheEntry snapshots a response for storage.
func newCacheEntry(resp *Response, now time.Time) *CacheEntry {
	return &CacheEntry{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Timestamp:  now,
	}
}

// response reconstructs a Response from the stored entry. Raw is nil on
// replayed responses; the transport handle only exists on live ones.
func (e *CacheEntry) response(cfg *RequestConfig) *Response {
	return &Response{
		Status:     e.Status,
		StatusText: e.StatusText,
		Headers:    http.Header(e.Headers),
		Body:       e.Body,
		Config:     cfg,
	}
}

// Store is the backing storage for cached responses. Implementations
// must be safe for concurrent use. A Get on an absent key returns
// (nil, false, nil), not an error.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
}

const memoryStoreShards = 16

// MemoryStore is an in-process Store sharded by key hash to reduce lock
// contention under concurrent dispatch.
type MemoryStore struct {
	shards [memoryStoreShards]memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*CacheEntry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%memoryStoreShards]
}

// Has implements Store.
func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	_, ok := sh.entries[key]
	sh.mu.RUnlock()
	return ok, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*CacheEntry, bool, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

// Set implements Store. An existing entry for the key is overwritten.
func (s *MemoryStore) Set(_ context.Context, key string, entry *CacheEntry) error {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = entry
	sh.mu.Unlock()
	return nil
}

// Delete implements Store. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Len reports the number of stored entries across all shards.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].entries)
		s.shards[i].mu.RUnlock()
	}
	return n
}
