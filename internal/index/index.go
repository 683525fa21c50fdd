// Package index persists knowledge chunks with their embeddings and answers
// nearest-neighbor and keyword queries.
//
// Two implementations exist behind the Store interface: Postgres uses
// pgvector for in-database cosine ordering with filter pushdown, and Memory
// is an exhaustive in-process scan used when the backing store has no vector
// support. Both produce identical relative ordering for the same query and
// filters, with ties broken by ascending chunk ID.
package index

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/knowledge"
)

// ErrModelMismatch indicates the store already holds embeddings from a
// different model than the one writing. Mixing models corrupts similarity
// math, so writes refuse it; a full reindex clears the condition.
var ErrModelMismatch = errors.New("index holds embeddings from a different model")

// Filter restricts search candidates to a scope. Nil fields match anything.
type Filter struct {
	HomeID     *uuid.UUID
	RoomID     *uuid.UUID
	FloorLevel *int
}

// Hit is one scored candidate with the provenance of its document.
type Hit struct {
	Chunk    knowledge.Chunk
	Document knowledge.Document
	Score    float64
}

// ModelInfo identifies the embedding model whose vectors the store holds.
type ModelInfo struct {
	Name      string
	Dimension int
}

// Stats reports index size.
type Stats struct {
	Documents int
	Chunks    int
}

// Store persists chunks and embeddings and serves scoped similarity and
// keyword lookups. Implementations must be safe for concurrent use, and
// Upsert must replace a document's chunks atomically with respect to
// concurrent readers.
type Store interface {
	// Upsert replaces all chunks and embeddings for the document identified
	// by (SourceType, SourceID). vectors[i] belongs to chunks[i].
	Upsert(ctx context.Context, doc knowledge.Document, chunks []knowledge.Chunk, vectors [][]float32) error

	// Search returns up to limit chunks ordered by descending cosine
	// similarity to vector, ties by ascending chunk ID.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error)

	// SearchKeyword returns up to limit chunks ordered by descending keyword
	// relevance to query, ties by ascending chunk ID. Chunks with no
	// relevance at all are omitted.
	SearchKeyword(ctx context.Context, query string, filter Filter, limit int) ([]Hit, error)

	// DeleteScope removes all documents for one home, or everything when
	// homeID is nil.
	DeleteScope(ctx context.Context, homeID *uuid.UUID) error

	// Reset wipes the index and records model as the embedding model for
	// subsequent writes. This is the recovery path for a stale index: a full
	// rebuild resets through here so the store can switch embedding models.
	Reset(ctx context.Context, model ModelInfo) error

	// ModelInfo returns the model whose embeddings the store holds. ok is
	// false when the index has never been written.
	ModelInfo(ctx context.Context) (info ModelInfo, ok bool, err error)

	// Stats returns document and chunk counts.
	Stats(ctx context.Context) (Stats, error)

	// Name identifies the backend in logs.
	Name() string
}

// compareChunkIDs orders chunk IDs bytewise for deterministic tie-breaking.
func compareChunkIDs(a, b uuid.UUID) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
