package domain

import (
	"context"

	"github.com/google/uuid"
)

// StaticReader is a Reader over fixed in-memory records. Useful in tests and
// for indexing snapshots exported from another system.
type StaticReader struct {
	FloorPlanRecords         []FloorPlan
	RoomRecords              []Room
	ImageAnalysisRecords     []ImageAnalysis
	FloorPlanAnalysisRecords []FloorPlanAnalysis
	RoomAnalysisRecords      []RoomAnalysis
}

var _ Reader = (*StaticReader)(nil)

func inScope(homeID *uuid.UUID, recordHome uuid.UUID) bool {
	return homeID == nil || recordHome == *homeID
}

// FloorPlans returns the fixture floor plans in scope.
func (s *StaticReader) FloorPlans(_ context.Context, homeID *uuid.UUID) ([]FloorPlan, error) {
	var out []FloorPlan
	for _, fp := range s.FloorPlanRecords {
		if inScope(homeID, fp.HomeID) {
			out = append(out, fp)
		}
	}
	return out, nil
}

// Rooms returns the fixture rooms in scope.
func (s *StaticReader) Rooms(_ context.Context, homeID *uuid.UUID) ([]Room, error) {
	var out []Room
	for _, rm := range s.RoomRecords {
		if inScope(homeID, rm.HomeID) {
			out = append(out, rm)
		}
	}
	return out, nil
}

// ImageAnalyses returns the fixture image analyses in scope.
func (s *StaticReader) ImageAnalyses(_ context.Context, homeID *uuid.UUID) ([]ImageAnalysis, error) {
	var out []ImageAnalysis
	for _, a := range s.ImageAnalysisRecords {
		if inScope(homeID, a.HomeID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// FloorPlanAnalyses returns the fixture floor plan analyses in scope.
func (s *StaticReader) FloorPlanAnalyses(_ context.Context, homeID *uuid.UUID) ([]FloorPlanAnalysis, error) {
	var out []FloorPlanAnalysis
	for _, a := range s.FloorPlanAnalysisRecords {
		if inScope(homeID, a.HomeID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// RoomAnalyses returns the fixture room analyses in scope.
func (s *StaticReader) RoomAnalyses(_ context.Context, homeID *uuid.UUID) ([]RoomAnalysis, error) {
	var out []RoomAnalysis
	for _, a := range s.RoomAnalysisRecords {
		if inScope(homeID, a.HomeID) {
			out = append(out, a)
		}
	}
	return out, nil
}
