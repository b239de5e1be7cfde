package courier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// FileStore is a durable Store keeping one JSON file per entry. Writes go
// to a temporary file first and are renamed into place, so readers never
// observe a partially written entry.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("courier: file store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("courier: create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Has implements Store.
func (s *FileStore) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get implements Store. A corrupt entry file reads as a miss.
func (s *FileStore) Get(_ context.Context, key string) (*CacheEntry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := s.path(key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Delete implements Store. Deleting an absent key is a no-op.
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// path maps a cache key onto a filename. Unsafe characters are replaced
// and overlong names are truncated; a hash of the raw key is always
// appended so distinct keys never share a file even when sanitization
// or truncation makes their readable parts equal.
func (s *FileStore) path(key string) string {
	name := sanitizeKey(key)
	if len(name) > 160 {
		name = name[:160]
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, name+"_"+hex.EncodeToString(sum[:8])+".json")
}

func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(key)
}
