// Package decision decides which encoded outputs are worth sharing through
// the redis tier.
package decision

type Interface interface {
	// Observe records one request for key.
	Observe(key string)
	// ShouldCache reports whether a fresh encoding of key goes to redis.
	ShouldCache(key string) bool
}
