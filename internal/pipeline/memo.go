package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type memoEntry[T any] struct {
	val T
	err error
}

// memo caches one result per key for the lifetime of a run. Concurrent callers
// for the same key share a single computation. Results computed while ctx was
// cancelled, and errors rejected by keepErr, are returned but not kept.
type memo[T any] struct {
	mu    sync.Mutex
	done  map[string]memoEntry[T]
	group singleflight.Group

	// keepErr reports whether a failed computation is cached. Nil keeps all.
	keepErr func(error) bool
}

func newMemo[T any]() *memo[T] {
	return &memo[T]{done: make(map[string]memoEntry[T])}
}

func (m *memo[T]) lookup(key string) (memoEntry[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.done[key]
	return e, ok
}

// Do returns the cached result for key, computing it with fn on first use.
func (m *memo[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	if e, ok := m.lookup(key); ok {
		return e.val, e.err
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if e, ok := m.lookup(key); ok {
			return e.val, e.err
		}
		val, err := fn()
		if ctx.Err() == nil && (err == nil || m.keepErr == nil || m.keepErr(err)) {
			m.mu.Lock()
			m.done[key] = memoEntry[T]{val: val, err: err}
			m.mu.Unlock()
		}
		return val, err
	})
	val, _ := v.(T)
	return val, err
}

// Len returns the number of cached keys.
func (m *memo[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.done)
}
