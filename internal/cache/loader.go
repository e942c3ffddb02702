package cache

import (
	"golang.org/x/sync/singleflight"
)

// Loader pairs an LRU cache with single-flight miss handling: concurrent
// callers asking for the same key while it is being loaded share one
// underlying load instead of each hitting the data source.
type Loader[T any] struct {
	cache *LRUCache[T]
	group singleflight.Group
}

// NewLoader creates a Loader backed by the given cache.
func NewLoader[T any](cache *LRUCache[T]) *Loader[T] {
	return &Loader[T]{cache: cache}
}

// GetOrLoad returns the cached value for key, or runs load once to produce
// it. Load errors are returned to every waiting caller and nothing is cached.
func (l *Loader[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have finished
		// loading while this one waited for the group slot.
		if cached, ok := l.cache.Get(key); ok {
			return cached, nil
		}
		data, err := load()
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, data)
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops a single key.
func (l *Loader[T]) Invalidate(key string) {
	l.cache.Delete(key)
}

// Clear drops every cached entry.
func (l *Loader[T]) Clear() {
	l.cache.Clear()
}
