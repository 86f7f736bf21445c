package streamutil

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded cache with an eviction hook, used by the vacuum pass to
// spill ids that fall out of the hot set into an overflow set (spec §4.4,
// vacuumCacheSize) instead of growing memory unbounded on huge collections.
type LRU[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewLRU builds a cache of the given size. onEvict, if non-nil, is called
// synchronously with the evicted key/value pair, before Add returns.
func NewLRU[K comparable, V any](size int, onEvict func(key K, value V)) (*LRU[K, V], error) {
	var cache *lru.Cache[K, V]
	var err error
	if onEvict != nil {
		cache, err = lru.NewWithEvict[K, V](size, onEvict)
	} else {
		cache, err = lru.New[K, V](size)
	}
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{cache: cache}, nil
}

func (l *LRU[K, V]) Add(key K, value V)  { l.cache.Add(key, value) }
func (l *LRU[K, V]) Contains(key K) bool { return l.cache.Contains(key) }
func (l *LRU[K, V]) Get(key K) (V, bool) { return l.cache.Get(key) }
func (l *LRU[K, V]) Remove(key K)        { l.cache.Remove(key) }
func (l *LRU[K, V]) Len() int            { return l.cache.Len() }
func (l *LRU[K, V]) Purge()              { l.cache.Purge() }
