// Package cache provides small, swappable key/value caches used to
// memoize expensive calls; the pipeline uses them for topic-similarity
// embeddings keyed by text.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// KeyFor generates a stable cache key from an arbitrary string (such
// as a topic text for embeddings).
func KeyFor(s string) string {
	hash := sha256.Sum256([]byte(s))
	return "convoengine:v1:" + hex.EncodeToString(hash[:])
}
