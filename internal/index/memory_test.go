package index

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelens/homelens/internal/knowledge"
)

var testModel = ModelInfo{Name: "hashing-sha256-4", Dimension: 4}

type testDoc struct {
	doc     knowledge.Document
	chunks  []knowledge.Chunk
	vectors [][]float32
}

func makeDoc(t *testing.T, sourceID uuid.UUID, homeID, roomID *uuid.UUID, floorLevel int, texts []string, vectors [][]float32) testDoc {
	t.Helper()
	require.Equal(t, len(texts), len(vectors))

	doc := knowledge.Document{
		ID:         knowledge.DocumentID(knowledge.SourceRoomSummary, sourceID),
		Title:      "Room " + sourceID.String()[:8],
		SourceType: knowledge.SourceRoomSummary,
		SourceID:   sourceID,
		HomeID:     homeID,
		RoomID:     roomID,
	}
	if floorLevel >= 0 {
		doc.Metadata = map[string]string{knowledge.MetaFloorLevel: strconv.Itoa(floorLevel)}
	}
	var chunks []knowledge.Chunk
	for i, text := range texts {
		doc.Text += text + " "
		chunks = append(chunks, knowledge.Chunk{
			ID:         knowledge.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Seq:        i,
			Text:       text,
		})
	}
	return testDoc{doc: doc, chunks: chunks, vectors: vectors}
}

func TestMemoryUpsertReplacesDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	sourceID := uuid.New()

	first := makeDoc(t, sourceID, nil, nil, -1,
		[]string{"one", "two", "three"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}})
	require.NoError(t, store.Upsert(ctx, first.doc, first.chunks, first.vectors))

	second := makeDoc(t, sourceID, nil, nil, -1,
		[]string{"uno", "dos"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	require.NoError(t, store.Upsert(ctx, second.doc, second.chunks, second.vectors))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Chunks: 2}, stats)

	hits, err := store.Search(ctx, []float32{0, 0, 1, 0}, Filter{}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "three", h.Chunk.Text, "replaced chunk should be gone")
	}
}

func TestMemoryUpsertRejectsVectorCountMismatch(t *testing.T) {
	store := NewMemory(testModel)
	d := makeDoc(t, uuid.New(), nil, nil, -1, []string{"a", "b"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})

	err := store.Upsert(context.Background(), d.doc, d.chunks, d.vectors[:1])
	assert.Error(t, err)
}

func TestMemorySearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	d := makeDoc(t, uuid.New(), nil, nil, -1,
		[]string{"exact", "close", "orthogonal"},
		[][]float32{{1, 0, 0, 0}, {0.9, 0.1, 0, 0}, {0, 0, 0, 1}})
	require.NoError(t, store.Upsert(ctx, d.doc, d.chunks, d.vectors))

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].Chunk.Text)
	assert.Equal(t, "close", hits[1].Chunk.Text)
	assert.Equal(t, "orthogonal", hits[2].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}

func TestMemorySearchBreaksTiesByChunkID(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	d := makeDoc(t, uuid.New(), nil, nil, -1,
		[]string{"twin a", "twin b", "twin c"},
		[][]float32{{0, 1, 0, 0}, {0, 1, 0, 0}, {0, 1, 0, 0}})
	require.NoError(t, store.Upsert(ctx, d.doc, d.chunks, d.vectors))

	hits, err := store.Search(ctx, []float32{0, 1, 0, 0}, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.Equal(t, hits[i-1].Score, hits[i].Score)
		assert.Negative(t, compareChunkIDs(hits[i-1].Chunk.ID, hits[i].Chunk.ID),
			"equal scores must order by ascending chunk id")
	}
}

func TestMemorySearchHonorsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)

	homeA, homeB := uuid.New(), uuid.New()
	roomA, roomB := uuid.New(), uuid.New()
	vec := [][]float32{{1, 0, 0, 0}}

	docs := []testDoc{
		makeDoc(t, uuid.New(), &homeA, &roomA, 1, []string{"home a room a floor 1"}, vec),
		makeDoc(t, uuid.New(), &homeA, &roomB, 2, []string{"home a room b floor 2"}, vec),
		makeDoc(t, uuid.New(), &homeB, nil, -1, []string{"home b unscoped"}, vec),
	}
	for _, d := range docs {
		require.NoError(t, store.Upsert(ctx, d.doc, d.chunks, d.vectors))
	}

	query := []float32{1, 0, 0, 0}

	hits, err := store.Search(ctx, query, Filter{HomeID: &homeA}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = store.Search(ctx, query, Filter{HomeID: &homeA, RoomID: &roomB}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "home a room b floor 2", hits[0].Chunk.Text)

	level := 1
	hits, err = store.Search(ctx, query, Filter{FloorLevel: &level}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "home a room a floor 1", hits[0].Chunk.Text)

	missing := 7
	hits, err = store.Search(ctx, query, Filter{FloorLevel: &missing}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemorySearchKeyword(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	vec := [][]float32{{1, 0, 0, 0}}

	kitchen := makeDoc(t, uuid.New(), nil, nil, -1, []string{"granite countertop in the kitchen"}, vec)
	bath := makeDoc(t, uuid.New(), nil, nil, -1, []string{"ceramic tile in the bathroom"}, vec)
	require.NoError(t, store.Upsert(ctx, kitchen.doc, kitchen.chunks, kitchen.vectors))
	require.NoError(t, store.Upsert(ctx, bath.doc, bath.chunks, bath.vectors))

	hits, err := store.SearchKeyword(ctx, "granite countertop", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "non-matching chunks are omitted")
	assert.Contains(t, hits[0].Chunk.Text, "granite")
	assert.Positive(t, hits[0].Score)

	hits, err = store.SearchKeyword(ctx, "", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.SearchKeyword(ctx, "ziggurat", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryDeleteScope(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	vec := [][]float32{{1, 0, 0, 0}}

	homeA, homeB := uuid.New(), uuid.New()
	a := makeDoc(t, uuid.New(), &homeA, nil, -1, []string{"home a"}, vec)
	b := makeDoc(t, uuid.New(), &homeB, nil, -1, []string{"home b"}, vec)
	require.NoError(t, store.Upsert(ctx, a.doc, a.chunks, a.vectors))
	require.NoError(t, store.Upsert(ctx, b.doc, b.chunks, b.vectors))

	require.NoError(t, store.DeleteScope(ctx, &homeA))
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Chunks: 1}, stats)

	info, ok, err := store.ModelInfo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testModel, info)

	require.NoError(t, store.DeleteScope(ctx, nil))
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, ok, err = store.ModelInfo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "full wipe resets the recorded model")
}

func TestMemoryResetSwitchesModel(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	vec := [][]float32{{1, 0, 0, 0}}

	d := makeDoc(t, uuid.New(), nil, nil, -1, []string{"old model"}, vec)
	require.NoError(t, store.Upsert(ctx, d.doc, d.chunks, d.vectors))

	next := ModelInfo{Name: "hashing-sha256-other", Dimension: 4}
	require.NoError(t, store.Reset(ctx, next))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, ok, err := store.ModelInfo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "reset leaves the index empty")

	d2 := makeDoc(t, uuid.New(), nil, nil, -1, []string{"new model"}, vec)
	require.NoError(t, store.Upsert(ctx, d2.doc, d2.chunks, d2.vectors))

	info, ok, err := store.ModelInfo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, info, "writes after a reset are recorded under the new model")
}

func TestMemorySearchLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testModel)
	d := makeDoc(t, uuid.New(), nil, nil, -1,
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0, 0, 0}, {0.9, 0.1, 0, 0}, {0.8, 0.2, 0, 0}, {0.7, 0.3, 0, 0}})
	require.NoError(t, store.Upsert(ctx, d.doc, d.chunks, d.vectors))

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Chunk.Text)
	assert.Equal(t, "b", hits[1].Chunk.Text)
}
