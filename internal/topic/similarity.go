package topic

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/convoengine/internal/cache"
)

// Similarity scores how alike two topic texts are, in [0,1], symmetric,
// with Score(a,a) = 1. The engine must function correctly with any
// conforming implementation — embedding-based or a cheaper
// placeholder — quality varies, correctness does not.
type Similarity interface {
	Score(a, b string) float64
}

// Embedder turns text into a fixed-length vector. HashEmbedder is the
// zero-dependency reference implementation; a real deployment could
// swap in a call to an embeddings API behind the same interface.
type Embedder interface {
	Embed(text string) []float64
}

// EmbeddingSimilarity computes cosine similarity over embeddings,
// memoizing each string's embedding in cache so repeated comparisons
// against the same stored topic texts don't recompute it.
type EmbeddingSimilarity struct {
	embedder Embedder
	cache    cache.Cache
	ttl      time.Duration
}

// NewEmbeddingSimilarity creates a cosine-similarity scorer backed by
// embedder, memoizing vectors in c.
func NewEmbeddingSimilarity(embedder Embedder, c cache.Cache) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{embedder: embedder, cache: c, ttl: 24 * time.Hour}
}

// Score returns the cosine similarity between the embeddings of a and b.
func (s *EmbeddingSimilarity) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	va := s.embeddingFor(a)
	vb := s.embeddingFor(b)
	return cosine(va, vb)
}

func (s *EmbeddingSimilarity) embeddingFor(text string) []float64 {
	key := cache.KeyFor("embedding:" + text)

	if s.cache != nil {
		if raw, ok := s.cache.Get(key); ok {
			var vec []float64
			if err := json.Unmarshal(raw, &vec); err == nil {
				return vec
			}
		}
	}

	vec := s.embedder.Embed(text)

	if s.cache != nil {
		if raw, err := json.Marshal(vec); err == nil {
			_ = s.cache.Set(key, raw, s.ttl)
		}
	}

	return vec
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// HashEmbedder is a deterministic, dependency-free placeholder
// embedder: it hashes overlapping character trigrams of the
// lower-cased text into a fixed-size vector. It has no semantic
// understanding, but satisfies the Embedder contract — useful for
// tests and for operating without a real embeddings API configured.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of dims
// dimensions (default 64 if dims <= 0).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &HashEmbedder{Dims: dims}
}

// Embed hashes text's character trigrams into a Dims-length vector.
func (h *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, h.Dims)
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return vec
	}

	runes := []rune(lowered)
	n := len(runes)
	for i := 0; i < n; i++ {
		end := i + 3
		if end > n {
			end = n
		}
		trigram := string(runes[i:end])
		bucket := fnv32(trigram) % uint32(h.Dims)
		vec[bucket]++
	}

	return vec
}

func fnv32(s string) uint32 {
	const prime = 16777619
	hash := uint32(2166136261)
	for _, b := range []byte(s) {
		hash ^= uint32(b)
		hash *= prime
	}
	return hash
}

// JaccardSimilarity is a cheap bag-of-words fallback: intersection
// over union of the two texts' lower-cased word sets. No cache or
// embedder dependency.
type JaccardSimilarity struct{}

// Score returns the Jaccard index of a's and b's word sets.
func (JaccardSimilarity) Score(a, b string) float64 {
	if a == b {
		return 1
	}

	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	intersection := 0
	for w := range wa {
		if wb[w] {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// NewSimilarity builds a Similarity from the configured kind
// ("embedding" or "jaccard"). For the embedding kind a nil embedder
// falls back to NewHashEmbedder(64); c may be nil to disable
// memoization.
func NewSimilarity(kind string, embedder Embedder, c cache.Cache) (Similarity, error) {
	switch strings.ToLower(kind) {
	case "", "embedding":
		if embedder == nil {
			embedder = NewHashEmbedder(64)
		}
		return NewEmbeddingSimilarity(embedder, c), nil
	case "jaccard":
		return JaccardSimilarity{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity kind: %s", kind)
	}
}
