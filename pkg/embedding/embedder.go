// Package embedding provides deterministic text vectorization and similarity
// primitives for the context engine. Vectors are derived from repeated
// cryptographic hashing, not from a learned model: the same text always
// produces the same vector across calls and process restarts, which makes
// results cacheable by content.
package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
	"strconv"
)

// DefaultDimension is the default embedding vector length.
const DefaultDimension = 384

// valuesPerBlock is the number of 16-bit values extracted per SHA-256 block.
const valuesPerBlock = sha256.Size / 2

// Embedder turns text into fixed-length L2-normalized vectors.
type Embedder struct {
	dimension int
}

// New creates an Embedder for the given dimension. Non-positive dimensions
// fall back to DefaultDimension.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Dimension returns the vector length produced by this embedder.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts text into an L2-normalized vector. The function is pure:
// identical text yields an identical vector. Empty text yields the zero
// vector, which downstream similarity treats as "similar to nothing".
func (e *Embedder) Embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	if text == "" {
		return vec
	}

	// Derive deterministic 16-bit values from sha256(text + ":" + salt),
	// scaled into [-1, 1]. Each hash block fills valuesPerBlock slots; the
	// final block may be partially consumed.
	blocks := (e.dimension + valuesPerBlock - 1) / valuesPerBlock
	idx := 0
	for salt := 0; salt < blocks; salt++ {
		sum := sha256.Sum256([]byte(text + ":" + strconv.Itoa(salt)))
		for j := 0; j < valuesPerBlock && idx < e.dimension; j++ {
			raw := binary.BigEndian.Uint16(sum[j*2 : j*2+2])
			vec[idx] = float32(float64(raw)/math.MaxUint16*2 - 1)
			idx++
		}
	}

	normalize(vec)
	return vec
}

// EmbedFunc adapts a plain function to the single-method embedder
// interfaces consumed by the clustering and branching components.
type EmbedFunc func(text string) []float32

// Embed calls f.
func (f EmbedFunc) Embed(text string) []float32 { return f(text) }

// normalize scales vec to unit L2 norm in place. A zero vector is left as is.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched lengths or a zero-norm operand yield 0 rather than an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// EuclideanDistance calculates the L2 distance between two vectors.
// Mismatched lengths yield +Inf, mirroring the "defined fallback, never
// fail" contract of the similarity primitives.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match is a scored candidate returned by TopKSimilar.
type Match struct {
	// Index is the candidate's position in the input slice.
	Index int `json:"index"`

	// Score is the cosine similarity to the query.
	Score float64 `json:"score"`
}

// TopKSimilar returns the k candidates most similar to the query, ordered by
// descending similarity. Ties keep original input order (stable sort).
func TopKSimilar(query []float32, candidates [][]float32, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Index: i, Score: CosineSimilarity(query, c)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}
