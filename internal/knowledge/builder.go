package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/domain"
)

// Builder projects domain state into a flat collection of knowledge
// documents. Building is read-only and deterministic: the same domain data
// always produces byte-identical document text, so a rebuild of an unchanged
// scope is a no-op in content terms.
type Builder struct {
	reader domain.Reader
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given domain reader.
func NewBuilder(reader domain.Reader, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{reader: reader, logger: logger}
}

// BuildResult summarizes one build pass. Skipped counts malformed source
// records that could not produce even a best-effort document.
type BuildResult struct {
	Documents []Document
	Skipped   int
}

// Build produces documents for every domain record in scope. A nil homeID
// processes the full dataset.
//
// Records missing required fields are handled best-effort: a document is
// still produced from whatever fields exist, and only records with nothing
// usable are skipped (and counted). A single bad record never fails the pass.
func (b *Builder) Build(ctx context.Context, homeID *uuid.UUID) (BuildResult, error) {
	var result BuildResult

	plans, err := b.reader.FloorPlans(ctx, homeID)
	if err != nil {
		return result, fmt.Errorf("reading floor plans: %w", err)
	}
	levelByPlan := make(map[uuid.UUID]int, len(plans))
	for _, fp := range plans {
		levelByPlan[fp.ID] = fp.Level
	}

	rooms, err := b.reader.Rooms(ctx, homeID)
	if err != nil {
		return result, fmt.Errorf("reading rooms: %w", err)
	}
	roomNames := make(map[uuid.UUID]string, len(rooms))
	roomLevels := make(map[uuid.UUID]*int, len(rooms))
	for _, room := range rooms {
		roomNames[room.ID] = room.Name
		roomLevels[room.ID] = roomLevel(room, levelByPlan)

		doc, ok := b.roomDocument(room, levelByPlan)
		if !ok {
			b.logger.Warn("skipping malformed room record", "room_id", room.ID)
			result.Skipped++
		} else {
			result.Documents = append(result.Documents, doc)
		}

		docs, skipped := b.roomContentDocuments(room, levelByPlan)
		result.Documents = append(result.Documents, docs...)
		result.Skipped += skipped
	}

	imageDocs, skipped, err := b.imageAnalysisDocuments(ctx, homeID, roomNames, roomLevels)
	if err != nil {
		return result, err
	}
	result.Documents = append(result.Documents, imageDocs...)
	result.Skipped += skipped

	planDocs, skipped, err := b.floorPlanAnalysisDocuments(ctx, homeID, levelByPlan)
	if err != nil {
		return result, err
	}
	result.Documents = append(result.Documents, planDocs...)
	result.Skipped += skipped

	roomAnalysisDocs, skipped, err := b.roomAnalysisDocuments(ctx, homeID, roomNames, roomLevels)
	if err != nil {
		return result, err
	}
	result.Documents = append(result.Documents, roomAnalysisDocs...)
	result.Skipped += skipped

	b.logger.Debug("documents built",
		"documents", len(result.Documents),
		"skipped", result.Skipped)
	return result, nil
}

// roomLevel resolves a room's floor number via its floor plan, nil when the
// room has no plan or the plan is unknown.
func roomLevel(room domain.Room, levelByPlan map[uuid.UUID]int) *int {
	if room.FloorPlanID == nil {
		return nil
	}
	if level, ok := levelByPlan[*room.FloorPlanID]; ok {
		return &level
	}
	return nil
}

// roomDocument synthesizes the structured room summary. Returns false when
// the record carries nothing to summarize.
func (b *Builder) roomDocument(room domain.Room, levelByPlan map[uuid.UUID]int) (Document, bool) {
	if room.Name == "" && room.Type == "" {
		return Document{}, false
	}

	name := room.Name
	if name == "" {
		name = room.Type
	}

	var sb strings.Builder
	sb.WriteString("Room: " + name)
	if room.Type != "" {
		sb.WriteString(" (" + room.Type + ")")
	}
	sb.WriteString("\n")
	if room.LengthM > 0 && room.WidthM > 0 {
		area := room.LengthM * room.WidthM
		sb.WriteString("Dimensions: " + formatMeters(room.LengthM) + " m x " +
			formatMeters(room.WidthM) + " m (" + formatMeters(area) + " sqm)\n")
	}
	level := roomLevel(room, levelByPlan)
	if level != nil {
		sb.WriteString("Floor level: " + strconv.Itoa(*level) + "\n")
	}
	if len(room.Materials) > 0 {
		parts := make([]string, 0, len(room.Materials))
		for _, m := range room.Materials {
			parts = append(parts, describeMaterial(m))
		}
		sb.WriteString("Materials: " + strings.Join(parts, "; ") + "\n")
	}
	if len(room.Fixtures) > 0 {
		parts := make([]string, 0, len(room.Fixtures))
		for _, f := range room.Fixtures {
			parts = append(parts, describeFixture(f))
		}
		sb.WriteString("Fixtures: " + strings.Join(parts, "; ") + "\n")
	}
	if len(room.Products) > 0 {
		parts := make([]string, 0, len(room.Products))
		for _, p := range room.Products {
			parts = append(parts, describeProduct(p))
		}
		sb.WriteString("Products: " + strings.Join(parts, "; ") + "\n")
	}

	doc := Document{
		ID:          DocumentID(SourceRoomSummary, room.ID),
		Title:       "Room: " + name,
		Text:        strings.TrimRight(sb.String(), "\n"),
		SourceType:  SourceRoomSummary,
		SourceID:    room.ID,
		HomeID:      cloneID(&room.HomeID),
		RoomID:      cloneID(&room.ID),
		FloorPlanID: room.FloorPlanID,
		Metadata:    roomMetadata(level),
	}
	return doc, true
}

// roomContentDocuments produces the short material, fixture and product
// summary documents for one room.
func (b *Builder) roomContentDocuments(room domain.Room, levelByPlan map[uuid.UUID]int) ([]Document, int) {
	var docs []Document
	skipped := 0
	level := roomLevel(room, levelByPlan)
	roomName := room.Name
	if roomName == "" {
		roomName = room.Type
	}

	for _, m := range room.Materials {
		if m.Name == "" {
			b.logger.Warn("skipping malformed material record", "material_id", m.ID, "room_id", room.ID)
			skipped++
			continue
		}
		text := describeMaterial(m)
		if roomName != "" {
			text += " in " + roomName
		}
		if m.Note != "" {
			text += ". " + m.Note
		}
		docs = append(docs, Document{
			ID:          DocumentID(SourceMaterialSummary, m.ID),
			Title:       "Material: " + m.Name,
			Text:        text,
			SourceType:  SourceMaterialSummary,
			SourceID:    m.ID,
			HomeID:      cloneID(&room.HomeID),
			RoomID:      cloneID(&room.ID),
			FloorPlanID: room.FloorPlanID,
			Metadata:    roomMetadata(level),
		})
	}

	for _, f := range room.Fixtures {
		if f.Name == "" {
			b.logger.Warn("skipping malformed fixture record", "fixture_id", f.ID, "room_id", room.ID)
			skipped++
			continue
		}
		text := describeFixture(f)
		if roomName != "" {
			text += " in " + roomName
		}
		if f.Note != "" {
			text += ". " + f.Note
		}
		docs = append(docs, Document{
			ID:          DocumentID(SourceFixtureSummary, f.ID),
			Title:       "Fixture: " + f.Name,
			Text:        text,
			SourceType:  SourceFixtureSummary,
			SourceID:    f.ID,
			HomeID:      cloneID(&room.HomeID),
			RoomID:      cloneID(&room.ID),
			FloorPlanID: room.FloorPlanID,
			Metadata:    roomMetadata(level),
		})
	}

	for _, p := range room.Products {
		if p.Name == "" {
			b.logger.Warn("skipping malformed product record", "product_id", p.ID, "room_id", room.ID)
			skipped++
			continue
		}
		text := describeProduct(p)
		if roomName != "" {
			text += " in " + roomName
		}
		docs = append(docs, Document{
			ID:          DocumentID(SourceProductSummary, p.ID),
			Title:       "Product: " + p.Name,
			Text:        text,
			SourceType:  SourceProductSummary,
			SourceID:    p.ID,
			HomeID:      cloneID(&room.HomeID),
			RoomID:      cloneID(&room.ID),
			FloorPlanID: room.FloorPlanID,
			Metadata:    roomMetadata(level),
		})
	}

	return docs, skipped
}

func (b *Builder) imageAnalysisDocuments(ctx context.Context, homeID *uuid.UUID, roomNames map[uuid.UUID]string, roomLevels map[uuid.UUID]*int) ([]Document, int, error) {
	analyses, err := b.reader.ImageAnalyses(ctx, homeID)
	if err != nil {
		return nil, 0, fmt.Errorf("reading image analyses: %w", err)
	}

	var docs []Document
	skipped := 0
	for _, a := range analyses {
		if a.Summary == "" && len(a.Findings) == 0 {
			b.logger.Warn("skipping malformed image analysis", "analysis_id", a.ID)
			skipped++
			continue
		}

		title := "Image analysis"
		var level *int
		if a.RoomID != nil {
			if name := roomNames[*a.RoomID]; name != "" {
				title += ": " + name
			}
			level = roomLevels[*a.RoomID]
		}

		docs = append(docs, Document{
			ID:         DocumentID(SourceImageAnalysis, a.ID),
			Title:      title,
			Text:       analysisText(a.Summary, a.Findings),
			SourceType: SourceImageAnalysis,
			SourceID:   a.ID,
			HomeID:     cloneID(&a.HomeID),
			RoomID:     a.RoomID,
			Metadata:   roomMetadata(level),
		})
	}
	return docs, skipped, nil
}

func (b *Builder) floorPlanAnalysisDocuments(ctx context.Context, homeID *uuid.UUID, levelByPlan map[uuid.UUID]int) ([]Document, int, error) {
	analyses, err := b.reader.FloorPlanAnalyses(ctx, homeID)
	if err != nil {
		return nil, 0, fmt.Errorf("reading floor plan analyses: %w", err)
	}

	var docs []Document
	skipped := 0
	for _, a := range analyses {
		if a.Summary == "" && len(a.Findings) == 0 {
			b.logger.Warn("skipping malformed floor plan analysis", "analysis_id", a.ID)
			skipped++
			continue
		}

		metadata := map[string]string{}
		if level, ok := levelByPlan[a.FloorPlanID]; ok {
			metadata[MetaFloorLevel] = strconv.Itoa(level)
		}

		docs = append(docs, Document{
			ID:          DocumentID(SourceFloorPlanAnalysis, a.ID),
			Title:       "Floor plan analysis",
			Text:        analysisText(a.Summary, a.Findings),
			SourceType:  SourceFloorPlanAnalysis,
			SourceID:    a.ID,
			HomeID:      cloneID(&a.HomeID),
			FloorPlanID: cloneID(&a.FloorPlanID),
			Metadata:    metadata,
		})
	}
	return docs, skipped, nil
}

func (b *Builder) roomAnalysisDocuments(ctx context.Context, homeID *uuid.UUID, roomNames map[uuid.UUID]string, roomLevels map[uuid.UUID]*int) ([]Document, int, error) {
	analyses, err := b.reader.RoomAnalyses(ctx, homeID)
	if err != nil {
		return nil, 0, fmt.Errorf("reading room analyses: %w", err)
	}

	var docs []Document
	skipped := 0
	for _, a := range analyses {
		if a.Summary == "" && len(a.Findings) == 0 {
			b.logger.Warn("skipping malformed room analysis", "analysis_id", a.ID)
			skipped++
			continue
		}

		title := "Room analysis"
		if name := roomNames[a.RoomID]; name != "" {
			title += ": " + name
		}

		docs = append(docs, Document{
			ID:         DocumentID(SourceRoomAnalysis, a.ID),
			Title:      title,
			Text:       analysisText(a.Summary, a.Findings),
			SourceType: SourceRoomAnalysis,
			SourceID:   a.ID,
			HomeID:     cloneID(&a.HomeID),
			RoomID:     cloneID(&a.RoomID),
			Metadata:   roomMetadata(roomLevels[a.RoomID]),
		})
	}
	return docs, skipped, nil
}

// analysisText joins a summary with its findings into one deterministic body.
func analysisText(summary string, findings []string) string {
	var parts []string
	if summary != "" {
		parts = append(parts, summary)
	}
	for _, f := range findings {
		if f != "" {
			parts = append(parts, "- "+f)
		}
	}
	return strings.Join(parts, "\n")
}

func describeMaterial(m domain.Material) string {
	if m.Surface != "" {
		return m.Surface + ": " + m.Name
	}
	return m.Name
}

func describeFixture(f domain.Fixture) string {
	if f.Category != "" {
		return f.Category + ": " + f.Name
	}
	return f.Name
}

func describeProduct(p domain.Product) string {
	name := p.Name
	if p.Brand != "" {
		name = p.Brand + " " + name
	}
	if p.Category != "" {
		return p.Category + ": " + name
	}
	return name
}

// roomMetadata builds the metadata map for a room-scoped document. The
// floor_level key is required on room-scoped documents whenever the floor is
// known.
func roomMetadata(level *int) map[string]string {
	md := map[string]string{}
	if level != nil {
		md[MetaFloorLevel] = strconv.Itoa(*level)
	}
	return md
}

// formatMeters renders a dimension with one decimal ("4.2", "14.7"). Fixed
// precision keeps the text stable against float noise in derived values.
func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// cloneID copies a uuid so documents never alias builder-internal memory.
func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
