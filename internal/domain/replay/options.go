package replay

// Default bound on tracked digests.
const defaultMaxSize = 50000

// Option applies a configuration option to the in-memory cache.
type Option func(*inMemoryCache)

// WithMaxSize bounds the number of tracked digests. Zero or negative means
// unbounded.
func WithMaxSize(size int) Option {
	return func(c *inMemoryCache) {
		c.maxSize = size
	}
}
