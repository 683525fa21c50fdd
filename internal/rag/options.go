package rag

import (
	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/index"
)

// Option configures the engine at construction time.
type Option func(*Engine)

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(maxChars, overlapChars int) Option {
	return func(e *Engine) {
		if maxChars > 0 {
			e.chunkMaxChars = maxChars
		}
		if overlapChars >= 0 {
			e.chunkOverlap = overlapChars
		}
	}
}

// WithTopK sets the default number of results per query.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithOversample sets how many candidates each retrieval leg fetches per
// requested result. Fusion quality degrades below 2.
func WithOversample(factor int) Option {
	return func(e *Engine) {
		if factor > 0 {
			e.oversample = factor
		}
	}
}

// WithFusionConstant sets the rank-smoothing constant of reciprocal rank
// fusion. Larger values flatten the difference between adjacent ranks.
func WithFusionConstant(k0 int) Option {
	return func(e *Engine) {
		if k0 > 0 {
			e.rrfK0 = k0
		}
	}
}

// WithHybrid enables or disables the keyword leg by default. Individual
// queries can still override with VectorOnly.
func WithHybrid(enabled bool) Option {
	return func(e *Engine) { e.hybrid = enabled }
}

// WithConcurrency bounds how many documents are embedded and written in
// parallel during a reindex.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithReranker installs a reranker applied after fusion, before truncation.
func WithReranker(r Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithRetrievalLogger installs best-effort query instrumentation.
func WithRetrievalLogger(l RetrievalLogger) Option {
	return func(e *Engine) { e.retrieval = l }
}

// QueryOption scopes or tunes a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	filter index.Filter
	topK   int
	hybrid bool
}

// ForHome restricts results to one home.
func ForHome(id uuid.UUID) QueryOption {
	return func(q *queryOptions) { q.filter.HomeID = &id }
}

// ForRoom restricts results to one room.
func ForRoom(id uuid.UUID) QueryOption {
	return func(q *queryOptions) { q.filter.RoomID = &id }
}

// ForFloorLevel restricts results to rooms on one floor.
func ForFloorLevel(level int) QueryOption {
	return func(q *queryOptions) { q.filter.FloorLevel = &level }
}

// TopK overrides the result count for this query.
func TopK(k int) QueryOption {
	return func(q *queryOptions) {
		if k > 0 {
			q.topK = k
		}
	}
}

// VectorOnly disables the keyword leg for this query; scores are then raw
// cosine similarities instead of fused rank scores.
func VectorOnly() QueryOption {
	return func(q *queryOptions) { q.hybrid = false }
}
