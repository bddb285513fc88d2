// Package memory provides a bounded in-process key-value store with expiry,
// used as the embedding cache when no Redis is configured.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/nursmen/neuralhire/internal/embcache"
)

// Store holds roughly maxEntries values, each for ttl after it was written.
// A ttl of zero keeps values until they are evicted.
type Store struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// NewStore creates a store admitting up to maxEntries values. Close releases it.
func NewStore(maxEntries int, ttl time.Duration) (*Store, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("memory store: max entries must be positive, got %d", maxEntries)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &Store{cache: cache, ttl: ttl}, nil
}

// Get returns the value at key, or embcache.ErrMiss when absent or expired.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, embcache.ErrMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value under key. Every entry costs one slot; when the
// store is full the admission policy decides whether the value is kept.
// Set returns once the write is applied, so a following Get observes it.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.SetWithTTL(key, append([]byte(nil), value...), 1, s.ttl)
	s.cache.Wait()
	return nil
}

// Close stops the cache's background goroutines.
func (s *Store) Close() {
	s.cache.Close()
}
