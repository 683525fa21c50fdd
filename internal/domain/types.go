// Package domain defines read-only access to the property records the
// knowledge engine consumes: homes, floor plans, rooms, analysis results, and
// the materials, fixtures and products detected in each room.
//
// The engine never writes these records; they are owned by the surrounding
// application. Reader is the consumer-defined interface the indexing
// pipeline depends on, with a PostgreSQL implementation for production and a
// StaticReader for tests and offline runs.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// Home is the top-level scoping record for all indexed knowledge.
type Home struct {
	ID      uuid.UUID
	Name    string
	Address string
}

// FloorPlan positions rooms on a floor of a home.
type FloorPlan struct {
	ID     uuid.UUID
	HomeID uuid.UUID
	Name   string
	Level  int // floor number, ground floor = 1
}

// Room is a single room with its detected contents. Materials, fixtures and
// products are loaded alongside the room so the document builder sees a
// complete record in one pass.
type Room struct {
	ID          uuid.UUID
	HomeID      uuid.UUID
	FloorPlanID *uuid.UUID
	Name        string
	Type        string // "kitchen", "bedroom", ...
	LengthM     float64
	WidthM      float64

	Materials []Material
	Fixtures  []Fixture
	Products  []Product
}

// Material is a surface material detected in a room (e.g. granite countertop).
type Material struct {
	ID      uuid.UUID
	RoomID  uuid.UUID
	Surface string // "countertop", "floor", "wall"
	Name    string // "granite", "oak"
	Note    string
}

// Fixture is a fixed installation detected in a room (e.g. recessed lighting).
type Fixture struct {
	ID       uuid.UUID
	RoomID   uuid.UUID
	Category string // "lighting", "plumbing"
	Name     string
	Note     string
}

// Product is a movable or branded item detected in a room.
type Product struct {
	ID       uuid.UUID
	RoomID   uuid.UUID
	Category string
	Brand    string
	Name     string
}

// ImageAnalysis is the stored result of analysing one photo.
type ImageAnalysis struct {
	ID       uuid.UUID
	HomeID   uuid.UUID
	RoomID   *uuid.UUID
	FileID   *uuid.UUID
	Summary  string
	Findings []string
}

// FloorPlanAnalysis is the stored result of analysing a floor plan document.
type FloorPlanAnalysis struct {
	ID          uuid.UUID
	HomeID      uuid.UUID
	FloorPlanID uuid.UUID
	Summary     string
	Findings    []string
}

// RoomAnalysis is the stored result of a whole-room assessment.
type RoomAnalysis struct {
	ID       uuid.UUID
	HomeID   uuid.UUID
	RoomID   uuid.UUID
	Summary  string
	Findings []string
}

// FileAsset is a stored file or URL referenced by domain records, such as an
// uploaded photo. Created by the external upload flow; the engine only reads
// it for provenance.
type FileAsset struct {
	ID          uuid.UUID
	Locator     string
	ContentType string
	SizeBytes   int64
	Metadata    map[string]string
}

// Reader provides read access to domain records, optionally scoped to one
// home. A nil homeID means the full dataset.
//
// Implementations must treat the scope consistently across methods: a room
// returned by Rooms must belong to a home whose analyses are returned by the
// analysis methods under the same scope.
type Reader interface {
	FloorPlans(ctx context.Context, homeID *uuid.UUID) ([]FloorPlan, error)
	Rooms(ctx context.Context, homeID *uuid.UUID) ([]Room, error)
	ImageAnalyses(ctx context.Context, homeID *uuid.UUID) ([]ImageAnalysis, error)
	FloorPlanAnalyses(ctx context.Context, homeID *uuid.UUID) ([]FloorPlanAnalysis, error)
	RoomAnalyses(ctx context.Context, homeID *uuid.UUID) ([]RoomAnalysis, error)
}
