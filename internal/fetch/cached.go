package fetch

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of documents memoised per run.
const DefaultCacheSize = 256

// DefaultCacheBytes bounds the total body bytes memoised per run.
const DefaultCacheBytes = 64 << 20

type cacheEntry struct {
	result *Result
	err    error
}

func (e cacheEntry) size() int64 {
	if e.result == nil {
		return 0
	}
	return int64(len(e.result.Body))
}

// Cache memoises fetch outcomes by URL for the lifetime of one run.
// Concurrent callers for the same URL share one underlying fetch, and failures are
// cached as well so a broken document is requested once, not once per councillor.
// The memo is bounded both in entries and in total body bytes; bodies larger than
// the byte budget are returned but never kept.
type Cache struct {
	next     Getter
	entries  *lru.Cache[string, cacheEntry]
	group    singleflight.Group
	maxBytes int64
	bytes    atomic.Int64
}

// NewCache wraps next with a per-run memo of at most size entries and maxBytes
// of bodies. Non-positive values select the defaults.
func NewCache(next Getter, size int, maxBytes int64) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	c := &Cache{next: next, maxBytes: maxBytes}
	entries, err := lru.NewWithEvict(size, func(_ string, e cacheEntry) {
		c.bytes.Add(-e.size())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Fetch returns the memoised outcome for rawURL, fetching it on first use.
// Outcomes caused by the caller's context ending are not memoised.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if e, ok := c.entries.Get(rawURL); ok {
		return e.result, e.err
	}

	v, _, _ := c.group.Do(rawURL, func() (any, error) {
		if e, ok := c.entries.Get(rawURL); ok {
			return e, nil
		}
		res, err := c.next.Fetch(ctx, rawURL)
		e := cacheEntry{result: res, err: err}
		if err == nil || ctx.Err() == nil {
			c.add(rawURL, e)
		}
		return e, nil
	})

	e := v.(cacheEntry)
	return e.result, e.err
}

// add memoises e and evicts the oldest entries until the byte budget holds.
func (c *Cache) add(rawURL string, e cacheEntry) {
	size := e.size()
	if size > c.maxBytes {
		return
	}
	if present, _ := c.entries.ContainsOrAdd(rawURL, e); present {
		return
	}
	c.bytes.Add(size)
	for c.bytes.Load() > c.maxBytes {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
	}
}

// Bytes reports the body bytes currently memoised.
func (c *Cache) Bytes() int64 {
	return c.bytes.Load()
}

// Len reports how many URLs are memoised.
func (c *Cache) Len() int {
	return c.entries.Len()
}
