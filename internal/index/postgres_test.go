package index

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelens/homelens/internal/embed"
	"github.com/homelens/homelens/internal/knowledge"
	"github.com/homelens/homelens/internal/testutil"
)

// embedThrough indexes the same corpus into both stores so ordering can be
// compared across backends.
func seedCorpus(t *testing.T, ctx context.Context, embedder *embed.Hashing, stores ...Store) (homeA, homeB uuid.UUID) {
	t.Helper()
	homeA, homeB = uuid.New(), uuid.New()

	corpus := []struct {
		home  uuid.UUID
		level int
		text  string
	}{
		{homeA, 1, "Room: Kitchen (kitchen). Materials: countertop: granite. Fixtures: sink: farmhouse sink."},
		{homeA, 1, "Room: Living Room (living). Materials: floor: oak hardwood. Products: tv: Samsung Frame."},
		{homeA, 2, "Room: Bedroom (bedroom). Materials: floor: wool carpet. Fixtures: lighting: pendant lamp."},
		{homeB, 1, "Room: Garage (garage). Materials: floor: epoxy coated concrete."},
	}
	for _, entry := range corpus {
		sourceID := uuid.New()
		home := entry.home
		docID := knowledge.DocumentID(knowledge.SourceRoomSummary, sourceID)
		doc := knowledge.Document{
			ID:         docID,
			Title:      entry.text[:20],
			Text:       entry.text,
			SourceType: knowledge.SourceRoomSummary,
			SourceID:   sourceID,
			HomeID:     &home,
			Metadata:   map[string]string{knowledge.MetaFloorLevel: strconv.Itoa(entry.level)},
		}
		chunk := knowledge.Chunk{
			ID:         knowledge.ChunkID(docID, 0),
			DocumentID: docID,
			Seq:        0,
			Text:       entry.text,
		}
		vec, err := embedder.Embed(ctx, entry.text)
		require.NoError(t, err)
		for _, store := range stores {
			require.NoError(t, store.Upsert(ctx, doc, []knowledge.Chunk{chunk}, [][]float32{vec}))
		}
	}
	return homeA, homeB
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	embedder := embed.NewHashing(64)
	model := ModelInfo{Name: embedder.ModelName(), Dimension: embedder.Dimension()}

	store, err := NewPostgres(ctx, db.Pool, model, 80, testutil.Logger(t))
	require.NoError(t, err)

	info, ok, err := store.ModelInfo(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "schema init records the active model")
	assert.Equal(t, model, info)

	memory := NewMemory(model)
	homeA, homeB := seedCorpus(t, ctx, embedder, store, memory)

	t.Run("search matches in-process ordering", func(t *testing.T) {
		for _, query := range []string{
			"granite kitchen countertop",
			"hardwood floor living room",
			"carpet in the bedroom",
		} {
			vec, err := embedder.Embed(ctx, query)
			require.NoError(t, err)

			pgHits, err := store.Search(ctx, vec, Filter{}, 10)
			require.NoError(t, err)
			memHits, err := memory.Search(ctx, vec, Filter{}, 10)
			require.NoError(t, err)

			require.Equal(t, len(memHits), len(pgHits), "query %q", query)
			for i := range pgHits {
				assert.Equal(t, memHits[i].Chunk.ID, pgHits[i].Chunk.ID,
					"query %q rank %d diverges between backends", query, i)
				assert.InDelta(t, memHits[i].Score, pgHits[i].Score, 1e-4)
			}
		}
	})

	t.Run("search carries provenance", func(t *testing.T) {
		vec, err := embedder.Embed(ctx, "granite kitchen countertop")
		require.NoError(t, err)
		hits, err := store.Search(ctx, vec, Filter{HomeID: &homeA}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, knowledge.SourceRoomSummary, hits[0].Document.SourceType)
		require.NotNil(t, hits[0].Document.HomeID)
		assert.Equal(t, homeA, *hits[0].Document.HomeID)
		assert.Equal(t, "1", hits[0].Document.Metadata[knowledge.MetaFloorLevel])
	})

	t.Run("filters push down", func(t *testing.T) {
		vec, err := embedder.Embed(ctx, "floor")
		require.NoError(t, err)

		hits, err := store.Search(ctx, vec, Filter{HomeID: &homeA}, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 3)

		level := 2
		hits, err = store.Search(ctx, vec, Filter{HomeID: &homeA, FloorLevel: &level}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Contains(t, hits[0].Chunk.Text, "Bedroom")

		missing := 9
		hits, err = store.Search(ctx, vec, Filter{FloorLevel: &missing}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("keyword search", func(t *testing.T) {
		hits, err := store.SearchKeyword(ctx, "granite countertop", Filter{}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Contains(t, hits[0].Chunk.Text, "granite")

		hits, err = store.SearchKeyword(ctx, "ziggurat", Filter{}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("upsert replaces by provenance", func(t *testing.T) {
		sourceID := uuid.New()
		docID := knowledge.DocumentID(knowledge.SourceRoomSummary, sourceID)
		home := homeB
		doc := knowledge.Document{
			ID: docID, Title: "Attic", Text: "old text",
			SourceType: knowledge.SourceRoomSummary, SourceID: sourceID, HomeID: &home,
		}
		mkChunks := func(texts ...string) ([]knowledge.Chunk, [][]float32) {
			var cs []knowledge.Chunk
			var vs [][]float32
			for i, text := range texts {
				cs = append(cs, knowledge.Chunk{ID: knowledge.ChunkID(docID, i), DocumentID: docID, Seq: i, Text: text})
				vec, err := embedder.Embed(ctx, text)
				require.NoError(t, err)
				vs = append(vs, vec)
			}
			return cs, vs
		}

		cs, vs := mkChunks("attic insulation batts", "attic roof trusses")
		require.NoError(t, store.Upsert(ctx, doc, cs, vs))
		before, err := store.Stats(ctx)
		require.NoError(t, err)

		cs, vs = mkChunks("attic skylight")
		require.NoError(t, store.Upsert(ctx, doc, cs, vs))
		after, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.Documents, after.Documents)
		assert.Equal(t, before.Chunks-1, after.Chunks)
	})

	t.Run("delete home scope", func(t *testing.T) {
		require.NoError(t, store.DeleteScope(ctx, &homeB))
		vec, err := embedder.Embed(ctx, "garage epoxy floor")
		require.NoError(t, err)
		hits, err := store.Search(ctx, vec, Filter{HomeID: &homeB}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)

		info, ok, err := store.ModelInfo(ctx)
		require.NoError(t, err)
		assert.True(t, ok, "scoped delete keeps the recorded model")
		assert.Equal(t, model, info)
	})

	t.Run("model mismatch and full rebuild", func(t *testing.T) {
		other := embed.NewHashing(32)
		otherModel := ModelInfo{Name: other.ModelName(), Dimension: other.Dimension()}

		mismatched, err := NewPostgres(ctx, db.Pool, otherModel, 80, testutil.Logger(t))
		require.NoError(t, err, "construction reads the stored model without failing")

		stored, ok, err := mismatched.ModelInfo(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model, stored, "stored model wins until a rebuild")

		sourceID := uuid.New()
		docID := knowledge.DocumentID(knowledge.SourceRoomSummary, sourceID)
		doc := knowledge.Document{ID: docID, Title: "x", Text: "x", SourceType: knowledge.SourceRoomSummary, SourceID: sourceID}
		vec, err := other.Embed(ctx, "x")
		require.NoError(t, err)
		err = mismatched.Upsert(ctx, doc,
			[]knowledge.Chunk{{ID: knowledge.ChunkID(docID, 0), DocumentID: docID, Seq: 0, Text: "x"}},
			[][]float32{vec})
		assert.ErrorIs(t, err, ErrModelMismatch)

		// Reset wipes and reshapes the column for the new model.
		require.NoError(t, mismatched.Reset(ctx, otherModel))
		stored, ok, err = mismatched.ModelInfo(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, otherModel, stored)

		require.NoError(t, mismatched.Upsert(ctx, doc,
			[]knowledge.Chunk{{ID: knowledge.ChunkID(docID, 0), DocumentID: docID, Seq: 0, Text: "x"}},
			[][]float32{vec}))
	})
}

func TestPostgresRetrievalLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	logStore := NewPostgresRetrievalLog(db.Pool)

	entry := knowledge.RetrievalLog{
		ID:       uuid.New(),
		Query:    "granite countertop",
		Filters:  map[string]string{"home_id": uuid.New().String()},
		ChunkIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Scores:   []float64{0.031, 0.028},
	}
	require.NoError(t, logStore.Record(ctx, entry))

	var count int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM retrieval_logs WHERE query = $1`, entry.Query).Scan(&count))
	assert.Equal(t, 1, count)
}
