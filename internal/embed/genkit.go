package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Genkit adapts a Genkit ai.Embedder (a learned sentence-embedding model) to
// the Embedder interface. Unlike Hashing it can fail: network and quota
// errors surface wrapped in ErrEmbed.
//
// The dimension must match what the underlying model actually produces; it is
// recorded here because ai.Embedder does not expose it.
type Genkit struct {
	embedder  ai.Embedder
	model     string
	dimension int
}

var _ Embedder = (*Genkit)(nil)

// NewGenkit wraps an ai.Embedder. model names the underlying embedding model
// (e.g. "text-embedding-004") and tags every stored vector.
func NewGenkit(embedder ai.Embedder, model string, dimension int) *Genkit {
	return &Genkit{
		embedder:  embedder,
		model:     model,
		dimension: dimension,
	}
}

// Embed computes the embedding for one text.
func (g *Genkit) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds all texts in a single model call.
func (g *Genkit) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmbed, g.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d inputs",
			ErrEmbed, g.model, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) != g.dimension {
			return nil, fmt.Errorf("%w: %s returned dimension %d, expected %d",
				ErrEmbed, g.model, len(e.Embedding), g.dimension)
		}
		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured vector width.
func (g *Genkit) Dimension() int { return g.dimension }

// ModelName returns the underlying model identifier.
func (g *Genkit) ModelName() string { return g.model }
