package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// tokenPattern matches word tokens including apostrophe contractions.
var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Hashing is a deterministic feature-hashing embedder. Each token (and each
// adjacent token bigram, to keep some word order) is hashed with SHA-256 into
// a bucket of the output vector with a hash-derived sign, then the vector is
// L2-normalized so cosine similarity reduces to a dot product.
//
// SHA-256 is used rather than hash/maphash because the vectors must be
// stable across processes, not just within one run.
type Hashing struct {
	dimension int
}

var _ Embedder = (*Hashing)(nil)

// NewHashing creates a hashing embedder with the given vector width.
func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = 256
	}
	return &Hashing{dimension: dimension}
}

// Embed is pure and total: it never fails, and empty or token-free text maps
// to the zero vector.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return vec, nil
	}

	for i, tok := range tokens {
		h.accumulate(vec, tok)
		if i+1 < len(tokens) {
			h.accumulate(vec, tok+" "+tokens[i+1])
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedMany maps Embed over each text.
func (h *Hashing) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured vector width.
func (h *Hashing) Dimension() int { return h.dimension }

// ModelName identifies this scheme and width; a different width is a
// different model.
func (h *Hashing) ModelName() string {
	return fmt.Sprintf("hashing-sha256-%d", h.dimension)
}

// accumulate adds the signed contribution of one feature to the vector.
func (h *Hashing) accumulate(vec []float32, feature string) {
	sum := sha256.Sum256([]byte(feature))
	bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(h.dimension)
	if sum[8]&1 == 0 {
		vec[bucket]++
	} else {
		vec[bucket]--
	}
}

// normalize scales vec to unit length in place. The zero vector stays zero.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
