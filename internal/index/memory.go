package index

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/knowledge"
)

// Memory is an in-process Store backed by maps and an exhaustive cosine
// scan. It serves deployments whose Postgres lacks the vector extension and
// doubles as the reference implementation for ordering semantics in tests.
type Memory struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]knowledge.Document
	chunks map[uuid.UUID]memoryChunk
	model  ModelInfo
	hasAny bool
}

type memoryChunk struct {
	chunk  knowledge.Chunk
	vector []float32
	tokens map[string]int
}

// NewMemory returns an empty in-process store holding vectors from model.
func NewMemory(model ModelInfo) *Memory {
	return &Memory{
		docs:   make(map[uuid.UUID]knowledge.Document),
		chunks: make(map[uuid.UUID]memoryChunk),
		model:  model,
	}
}

// Name implements Store.
func (m *Memory) Name() string { return "memory" }

// Upsert implements Store. The whole replace happens under the write lock,
// so readers never observe a document with a partial chunk set.
func (m *Memory) Upsert(ctx context.Context, doc knowledge.Document, chunks []knowledge.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert %s: %d chunks but %d vectors", doc.ID, len(chunks), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeDocumentLocked(doc.ID)
	m.docs[doc.ID] = doc
	m.hasAny = true
	for i, c := range chunks {
		m.chunks[c.ID] = memoryChunk{
			chunk:  c,
			vector: vectors[i],
			tokens: tokenCounts(c.Text),
		}
	}
	return nil
}

// Search implements Store.
func (m *Memory) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, mc := range m.chunks {
		doc, ok := m.docs[mc.chunk.DocumentID]
		if !ok || !matchesFilter(doc, filter) {
			continue
		}
		hits = append(hits, Hit{Chunk: mc.chunk, Document: doc, Score: cosine(vector, mc.vector)})
	}
	sortHits(hits)
	return truncate(hits, limit), nil
}

// SearchKeyword implements Store. Relevance is token overlap between the
// query and the chunk, normalized by chunk length so short focused chunks
// outrank long ones that mention a term in passing.
func (m *Memory) SearchKeyword(ctx context.Context, query string, filter Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := tokenCounts(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, mc := range m.chunks {
		doc, ok := m.docs[mc.chunk.DocumentID]
		if !ok || !matchesFilter(doc, filter) {
			continue
		}
		score := overlapScore(queryTokens, mc.tokens)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{Chunk: mc.chunk, Document: doc, Score: score})
	}
	sortHits(hits)
	return truncate(hits, limit), nil
}

// DeleteScope implements Store.
func (m *Memory) DeleteScope(ctx context.Context, homeID *uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if homeID == nil {
		m.wipeLocked()
		return nil
	}
	for id, doc := range m.docs {
		if doc.HomeID != nil && *doc.HomeID == *homeID {
			m.removeDocumentLocked(id)
		}
	}
	return nil
}

// Reset implements Store. Adopting the model here is what lets a full
// rebuild switch embedders on a store created for a different one.
func (m *Memory) Reset(ctx context.Context, model ModelInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wipeLocked()
	m.model = model
	return nil
}

func (m *Memory) wipeLocked() {
	m.docs = make(map[uuid.UUID]knowledge.Document)
	m.chunks = make(map[uuid.UUID]memoryChunk)
	m.hasAny = false
}

// ModelInfo implements Store.
func (m *Memory) ModelInfo(ctx context.Context) (ModelInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return ModelInfo{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model, m.hasAny, nil
}

// Stats implements Store.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Documents: len(m.docs), Chunks: len(m.chunks)}, nil
}

func (m *Memory) removeDocumentLocked(docID uuid.UUID) {
	delete(m.docs, docID)
	for id, mc := range m.chunks {
		if mc.chunk.DocumentID == docID {
			delete(m.chunks, id)
		}
	}
}

func matchesFilter(doc knowledge.Document, filter Filter) bool {
	if filter.HomeID != nil {
		if doc.HomeID == nil || *doc.HomeID != *filter.HomeID {
			return false
		}
	}
	if filter.RoomID != nil {
		if doc.RoomID == nil || *doc.RoomID != *filter.RoomID {
			return false
		}
	}
	if filter.FloorLevel != nil {
		if doc.Metadata[knowledge.MetaFloorLevel] != strconv.Itoa(*filter.FloorLevel) {
			return false
		}
	}
	return true
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return compareChunkIDs(hits[i].Chunk.ID, hits[j].Chunk.ID) < 0
	})
}

func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var wordPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		counts[w]++
	}
	return counts
}

// overlapScore counts query terms present in the chunk, weighted by their
// in-chunk frequency and normalized by chunk length.
func overlapScore(query, chunk map[string]int) float64 {
	var total int
	for t := range chunk {
		total += chunk[t]
	}
	if total == 0 {
		return 0
	}
	var matched float64
	for t := range query {
		matched += float64(chunk[t])
	}
	return matched / math.Sqrt(float64(total))
}
