package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

// MemoryClient implements an in-process cache backed by otter.
type MemoryClient struct {
	cache otter.CacheWithVariableTTL[string, []byte]
}

// NewMemoryClient creates a new in-memory cache client holding at most maxSize entries.
func NewMemoryClient(maxSize int) (*MemoryClient, error) {
	if maxSize <= 0 {
		maxSize = 10000
	}

	c, err := otter.MustBuilder[string, []byte](maxSize).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build memory cache: %w", err)
	}

	return &MemoryClient{cache: c}, nil
}

// Get retrieves a value from cache.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val, nil
}

// Set stores a value in cache with TTL. A non-positive TTL keeps the entry for a day.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from cache.
func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Close releases the cache's background resources.
func (c *MemoryClient) Close() error {
	c.cache.Close()
	return nil
}
