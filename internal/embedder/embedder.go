// Package embedder turns text into fixed-dimension unit-norm vectors.
//
// The real sentence-transformer model is a black box the core only
// assumes a contract of; the concrete
// implementation here is a deterministic hashing embedding so the rest of
// the pipeline (prototype cache, vector store, recommender) can be built
// and tested without a model-serving dependency.
package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Embedder turns text into unit-norm vectors of a fixed dimension.
//
// Implementations MUST be deterministic for a fixed model identifier,
// independent of byte order, and safe for concurrent use by multiple
// goroutines once constructed.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

type hashEmbedder struct {
	dim     int
	modelID string
}

// New constructs the deterministic hashing Embedder. modelID is carried
// through unchanged to key the prototype cache (internal/prototypes) and
// is not otherwise interpreted.
func New(modelID string, dim int) Embedder {
	return &hashEmbedder{dim: dim, modelID: modelID}
}

func (e *hashEmbedder) Dimension() int   { return e.dim }
func (e *hashEmbedder) ModelID() string  { return e.modelID }

// Encode requires text to be non-empty and returns an L2-unit vector.
func (e *hashEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedder: encode requires non-empty text")
	}
	return e.embed(text), nil
}

// EncodeBatch drops empty entries (a documented precondition violation,
// not an error) and fails only if the resulting batch is empty.
func (e *hashEmbedder) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, e.embed(t))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embedder: encode_batch requires at least one non-empty text")
	}
	return out, nil
}

// embed is the "hashing trick": each token is hashed into a bucket with a
// sign derived from a second hash, accumulated, then L2-normalised.
// Tokens are processed from a sorted slice (never a map range) so the
// result depends only on token content, never on map iteration order.
func (e *hashEmbedder) embed(text string) []float32 {
	tokens := tokenize(text)
	sort.Strings(tokens)

	vec := make([]float64, e.dim)
	for _, tok := range tokens {
		key := e.modelID + "\x00" + tok
		bucket := bucketHash(key) % uint32(e.dim)
		sign := 1.0
		if signHash(key)%2 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dim)
	if norm == 0 {
		// No recognised tokens (e.g. all punctuation): fall back to a
		// fixed unit vector along axis 0 rather than returning NaNs.
		out[0] = 1
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r == '\'' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r > 127)
	})
}

func bucketHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func signHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte("sign\x00" + s))
	return h.Sum32()
}
