// Package knowledge models the derived knowledge layer: documents projected
// from domain records, the chunks they are split into, and the provenance
// carried by every retrieved match.
//
// Documents are a rebuildable cache keyed by (source type, source id). They
// are replaced wholesale during a reindex pass, never patched, so stale
// duplicates cannot accumulate.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// SourceType enumerates the domain record kinds a document can derive from.
type SourceType string

// Source types for knowledge documents.
const (
	SourceRoomSummary       SourceType = "room_summary"
	SourceImageAnalysis     SourceType = "image_analysis"
	SourceFloorPlanAnalysis SourceType = "floor_plan_analysis"
	SourceRoomAnalysis      SourceType = "room_analysis"
	SourceMaterialSummary   SourceType = "material_summary"
	SourceFixtureSummary    SourceType = "fixture_summary"
	SourceProductSummary    SourceType = "product_summary"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceRoomSummary, SourceImageAnalysis, SourceFloorPlanAnalysis,
		SourceRoomAnalysis, SourceMaterialSummary, SourceFixtureSummary,
		SourceProductSummary:
		return true
	}
	return false
}

// MetaFloorLevel is the metadata key carrying the floor number on
// room-scoped documents.
const MetaFloorLevel = "floor_level"

// Document is one semantic unit of knowledge derived from a domain record.
// (SourceType, SourceID) uniquely identifies its provenance; the ID is
// derived from that pair so rebuilding a document yields the same ID.
type Document struct {
	ID          uuid.UUID
	Title       string
	Text        string
	SourceType  SourceType
	SourceID    uuid.UUID
	HomeID      *uuid.UUID
	RoomID      *uuid.UUID
	FloorPlanID *uuid.UUID
	Metadata    map[string]string
}

// Chunk is a contiguous slice of a document's text with a stable order.
// Overlap is the number of leading characters carried over from the previous
// chunk for context; stripping it and concatenating chunks in Seq order
// reconstructs the document text up to whitespace normalization.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Seq        int
	Text       string
	Overlap    int
}

// Match is one ranked retrieval result with full provenance, sufficient for
// a caller to cite or navigate back to the originating domain record.
type Match struct {
	Score       float64
	ChunkID     uuid.UUID
	Text        string
	DocumentID  uuid.UUID
	Title       string
	SourceType  SourceType
	SourceID    uuid.UUID
	HomeID      *uuid.UUID
	RoomID      *uuid.UUID
	FloorPlanID *uuid.UUID
}

// RetrievalLog records one served query for offline evaluation. Purely
// additive instrumentation; retrieval correctness never depends on it.
type RetrievalLog struct {
	ID        uuid.UUID
	Query     string
	Filters   map[string]string
	ChunkIDs  []uuid.UUID
	Scores    []float64
	CreatedAt time.Time
}

// namespace for deterministic document and chunk IDs.
var idNamespace = uuid.MustParse("9f2c6f5a-1f5b-4c63-9e2a-7d59c1b1a0e4")

// DocumentID derives the stable document ID for a provenance pair.
func DocumentID(sourceType SourceType, sourceID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(string(sourceType)+":"+sourceID.String()))
}

// ChunkID derives the stable chunk ID for a document position.
func ChunkID(documentID uuid.UUID, seq int) uuid.UUID {
	return uuid.NewSHA1(documentID, []byte{byte(seq >> 24), byte(seq >> 16), byte(seq >> 8), byte(seq)})
}
