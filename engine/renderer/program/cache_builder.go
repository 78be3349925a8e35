package program

import "github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"

// CacheBuilderOption configures a Cache at construction.
type CacheBuilderOption func(*cache)

// WithComposer sets the composer used on cache misses. The cache does not close a composer passed in.
//
// Parameters:
//   - c: the composer
//
// Returns:
//   - CacheBuilderOption: a function that applies the composer to the cache
func WithComposer(c shader.Composer) CacheBuilderOption {
	return func(pc *cache) {
		pc.composer = c
	}
}

// WithSourceCacheSize sets how many composed source sets are memoised by fingerprint.
func WithSourceCacheSize(n int) CacheBuilderOption {
	return func(pc *cache) {
		pc.sourceSize = max(n, 1)
	}
}

// WithWorkers sets the worker count of the composer the cache creates. It has no effect together with
// WithComposer.
func WithWorkers(n int) CacheBuilderOption {
	return func(pc *cache) {
		pc.workers = n
	}
}
