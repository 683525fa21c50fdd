// Package rag coordinates the knowledge pipeline end to end: it projects
// domain records into documents, chunks and embeds them into the index, and
// serves scoped hybrid retrieval queries over the result.
//
// The engine is backend-agnostic. It speaks to the index through the Store
// interface, so the same code runs against pgvector or the in-process
// fallback, and to the embedding model through the Embedder interface.
package rag

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/knowledge"
)

// Sentinel errors surfaced by the engine. Callers branch on these to decide
// between retrying, rebuilding, or reporting.
var (
	// ErrStaleIndex means the index holds vectors from a different embedding
	// model than the active one. Query results would be garbage; a full
	// reindex is required.
	ErrStaleIndex = errors.New("index is stale: built with a different embedding model")

	// ErrEmptyQuery means the query text was empty or whitespace.
	ErrEmptyQuery = errors.New("query text is empty")
)

// Summary reports what a reindex pass produced. Skipped counts malformed
// source records the builder could not project; Failed counts documents
// whose embedding or index write failed and were left out of this pass.
type Summary struct {
	Documents int
	Chunks    int
	Skipped   int
	Failed    int
}

// Reranker reorders fused candidates before truncation to the final result
// size. Implementations see the full oversampled candidate list.
type Reranker interface {
	Rerank(ctx context.Context, query string, matches []knowledge.Match) ([]knowledge.Match, error)
}

// RetrievalLogger records served queries for offline evaluation. Failures
// are logged and swallowed; retrieval never fails because logging did.
type RetrievalLogger interface {
	Record(ctx context.Context, entry knowledge.RetrievalLog) error
}

func compareUUIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
