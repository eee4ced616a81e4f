package cache

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v2"
)

// MemoryCache keeps entries in a process-local LRU. Least recently used
// entries are pruned once MaxSize is reached.
type MemoryCache struct {
	lru     *ccache.Cache
	options *CacheOptions
}

// NewMemoryCache creates an in-memory cache of at most opts.MaxSize entries.
func NewMemoryCache(opts *CacheOptions) *MemoryCache {
	if opts == nil {
		opts = &CacheOptions{DefaultTTL: 5 * time.Minute}
	}
	size := opts.MaxSize
	if size <= 0 {
		size = 1000
	}
	prune := uint32(size / 20)
	if prune == 0 {
		prune = 1
	}
	return &MemoryCache{
		lru:     ccache.New(ccache.Configure().MaxSize(size).ItemsToPrune(prune)),
		options: opts,
	}
}

// GetBytes returns nil for missing and expired entries.
func (c *MemoryCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	item := c.lru.Get(key)
	if item == nil || item.Expired() {
		return nil, nil
	}
	data, _ := item.Value().([]byte)
	return data, nil
}

func (c *MemoryCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.options.DefaultTTL
	}
	c.lru.Set(key, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Delete(key)
	return nil
}

// Close stops the background worker of the LRU.
func (c *MemoryCache) Close() error {
	c.lru.Stop()
	return nil
}
