// Package embed maps text to fixed-dimension float vectors.
//
// Two implementations exist: Hashing, a pure deterministic feature-hashing
// embedder that needs no model or credentials, and Genkit, which adapts a
// learned sentence-embedding model behind Genkit's ai.Embedder. Vectors from
// different embedders are not comparable; switching implementations requires
// a full reindex.
package embed

import (
	"context"
	"errors"
)

// ErrEmbed indicates an embedding computation failed. Only the learned
// variant can produce it; the hashing embedder is total.
var ErrEmbed = errors.New("embedding failed")

// Embedder converts text into unit-length vectors suitable for cosine
// similarity. Implementations must be safe for concurrent use.
//
// Embed must be pure: the same text always produces the same vector, empty
// text produces the zero vector. EmbedMany must be equivalent to mapping
// Embed over each input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed width of every vector this embedder produces.
	Dimension() int

	// ModelName tags stored embeddings so a model change is detectable.
	ModelName() string
}
