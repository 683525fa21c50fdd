package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/homelens/homelens/internal/domain"
	"github.com/homelens/homelens/internal/embed"
	"github.com/homelens/homelens/internal/index"
	"github.com/homelens/homelens/internal/knowledge"
	"github.com/homelens/homelens/internal/log"
)

// Engine owns the index lifecycle and query path. Safe for concurrent use;
// reindex passes for different homes run in parallel while passes for the
// same home, and full rebuilds, are serialized.
type Engine struct {
	store    index.Store
	embedder embed.Embedder
	builder  *knowledge.Builder
	logger   log.Logger

	chunkMaxChars int
	chunkOverlap  int
	topK          int
	oversample    int
	rrfK0         int
	hybrid        bool
	concurrency   int
	reranker      Reranker
	retrieval     RetrievalLogger

	locks scopeLocks
}

// New creates an engine over the given store, embedder, and domain reader.
func New(store index.Store, embedder embed.Embedder, reader domain.Reader, logger log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	e := &Engine{
		store:         store,
		embedder:      embedder,
		builder:       knowledge.NewBuilder(reader, logger),
		logger:        logger,
		chunkMaxChars: 1200,
		chunkOverlap:  120,
		topK:          8,
		oversample:    4,
		rrfK0:         60,
		hybrid:        true,
		concurrency:   4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) activeModel() index.ModelInfo {
	return index.ModelInfo{Name: e.embedder.ModelName(), Dimension: e.embedder.Dimension()}
}

// Reindex rebuilds the index for one home, or for everything when homeID is
// nil. Each document is replaced atomically; documents are processed in
// parallel up to the configured concurrency. A full rebuild also resets the
// recorded embedding model, so it is the recovery path for ErrStaleIndex.
func (e *Engine) Reindex(ctx context.Context, homeID *uuid.UUID) (Summary, error) {
	if homeID == nil {
		defer e.locks.lockAll()()
	} else {
		defer e.locks.lockHome(*homeID)()

		// A scoped pass cannot change the recorded model, so it must not
		// write vectors into an index built by a different one.
		info, ok, err := e.store.ModelInfo(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("reading index model: %w", err)
		}
		if ok && info != e.activeModel() {
			return Summary{}, fmt.Errorf("index holds %s/%d vectors, embedder is %s/%d: %w",
				info.Name, info.Dimension, e.embedder.ModelName(), e.embedder.Dimension(), ErrStaleIndex)
		}
	}

	result, err := e.builder.Build(ctx, homeID)
	if err != nil {
		return Summary{}, fmt.Errorf("building documents: %w", err)
	}

	// Clear the scope first so records deleted at the source disappear from
	// the index instead of lingering as orphans. A full rebuild resets the
	// recorded model to the active embedder's at the same time.
	if homeID == nil {
		err = e.store.Reset(ctx, e.activeModel())
	} else {
		err = e.store.DeleteScope(ctx, homeID)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("clearing index scope: %w", err)
	}

	var docCount, chunkCount, failedCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, doc := range result.Documents {
		g.Go(func() error {
			chunks := knowledge.ChunksForDocument(doc, e.chunkMaxChars, e.chunkOverlap)
			if len(chunks) == 0 {
				docCount.Add(1)
				return nil
			}
			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Text
			}
			vectors, err := e.embedder.EmbedMany(gctx, texts)
			if err != nil {
				return e.documentFailure(gctx, doc, "embedding", err, &failedCount)
			}
			if err := e.store.Upsert(gctx, doc, chunks, vectors); err != nil {
				return e.documentFailure(gctx, doc, "indexing", err, &failedCount)
			}
			docCount.Add(1)
			chunkCount.Add(int64(len(chunks)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Documents: int(docCount.Load()),
		Chunks:    int(chunkCount.Load()),
		Skipped:   result.Skipped,
		Failed:    int(failedCount.Load()),
	}
	e.logger.Info("reindex complete",
		"backend", e.store.Name(),
		"documents", summary.Documents,
		"chunks", summary.Chunks,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"scoped", homeID != nil)
	return summary, nil
}

// documentFailure decides whether one document's failure stops the pass.
// Cancellation and a mismatched model are systemic and abort; anything else
// is logged and counted so the remaining documents still get indexed.
func (e *Engine) documentFailure(ctx context.Context, doc knowledge.Document, stage string, err error, failed *atomic.Int64) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s document %s: %w", stage, doc.ID, err)
	}
	if errors.Is(err, index.ErrModelMismatch) {
		return fmt.Errorf("%s document %s: %w", stage, doc.ID, err)
	}
	failed.Add(1)
	e.logger.Warn("document not indexed",
		"stage", stage,
		"document_id", doc.ID,
		"source_type", doc.SourceType,
		"error", err)
	return nil
}

// Query retrieves the chunks most relevant to the query text within the
// given scope. In hybrid mode the vector and keyword legs are merged by
// reciprocal rank fusion; in vector-only mode scores are raw cosine
// similarities. An empty result is a valid answer, not an error.
func (e *Engine) Query(ctx context.Context, query string, opts ...QueryOption) ([]knowledge.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	q := queryOptions{topK: e.topK, hybrid: e.hybrid}
	for _, opt := range opts {
		opt(&q)
	}

	info, ok, err := e.store.ModelInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index model: %w", err)
	}
	if ok && info != e.activeModel() {
		return nil, fmt.Errorf("index holds %s/%d vectors, embedder is %s/%d: %w",
			info.Name, info.Dimension, e.embedder.ModelName(), e.embedder.Dimension(), ErrStaleIndex)
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Each leg fetches more than topK so fusion has candidates that one leg
	// ranked highly and the other missed.
	limit := q.topK * e.oversample

	vectorHits, err := e.store.Search(ctx, vector, q.filter, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var matches []knowledge.Match
	if q.hybrid {
		keywordHits, err := e.store.SearchKeyword(ctx, query, q.filter, limit)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		matches = fuse(vectorHits, keywordHits, e.rrfK0)
	} else {
		matches = make([]knowledge.Match, 0, len(vectorHits))
		for _, h := range vectorHits {
			matches = append(matches, matchFromHit(h, h.Score))
		}
	}

	if e.reranker != nil {
		matches, err = e.reranker.Rerank(ctx, query, matches)
		if err != nil {
			return nil, fmt.Errorf("reranking: %w", err)
		}
	}
	if len(matches) > q.topK {
		matches = matches[:q.topK]
	}

	e.recordRetrieval(ctx, query, q, matches)
	return matches, nil
}

// Stats reports the current index size and backend.
func (e *Engine) Stats(ctx context.Context) (index.Stats, string, error) {
	stats, err := e.store.Stats(ctx)
	return stats, e.store.Name(), err
}

func (e *Engine) recordRetrieval(ctx context.Context, query string, q queryOptions, matches []knowledge.Match) {
	if e.retrieval == nil {
		return
	}
	entry := knowledge.RetrievalLog{
		ID:      uuid.New(),
		Query:   query,
		Filters: map[string]string{},
	}
	if q.filter.HomeID != nil {
		entry.Filters["home_id"] = q.filter.HomeID.String()
	}
	if q.filter.RoomID != nil {
		entry.Filters["room_id"] = q.filter.RoomID.String()
	}
	if q.filter.FloorLevel != nil {
		entry.Filters[knowledge.MetaFloorLevel] = fmt.Sprintf("%d", *q.filter.FloorLevel)
	}
	for _, m := range matches {
		entry.ChunkIDs = append(entry.ChunkIDs, m.ChunkID)
		entry.Scores = append(entry.Scores, m.Score)
	}
	if err := e.retrieval.Record(ctx, entry); err != nil {
		e.logger.Warn("retrieval log write failed", "error", err)
	}
}

// fusedCandidate accumulates a chunk's evidence across both retrieval legs.
type fusedCandidate struct {
	hit      index.Hit
	score    float64
	bestRank int
}

// fuse merges two ranked lists with reciprocal rank fusion. Ties on the
// fused score go to the candidate with the better single-leg rank, then to
// the lower chunk ID, so output order is fully deterministic.
func fuse(vectorHits, keywordHits []index.Hit, k0 int) []knowledge.Match {
	byChunk := make(map[uuid.UUID]*fusedCandidate)
	accumulate := func(hits []index.Hit) {
		for i, h := range hits {
			rank := i + 1
			c, ok := byChunk[h.Chunk.ID]
			if !ok {
				c = &fusedCandidate{hit: h, bestRank: rank}
				byChunk[h.Chunk.ID] = c
			} else if rank < c.bestRank {
				c.bestRank = rank
			}
			c.score += 1 / float64(k0+rank)
		}
	}
	accumulate(vectorHits)
	accumulate(keywordHits)

	candidates := make([]*fusedCandidate, 0, len(byChunk))
	for _, c := range byChunk {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return compareUUIDs(a.hit.Chunk.ID, b.hit.Chunk.ID) < 0
	})

	matches := make([]knowledge.Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, matchFromHit(c.hit, c.score))
	}
	return matches
}

func matchFromHit(h index.Hit, score float64) knowledge.Match {
	return knowledge.Match{
		Score:       score,
		ChunkID:     h.Chunk.ID,
		Text:        h.Chunk.Text,
		DocumentID:  h.Document.ID,
		Title:       h.Document.Title,
		SourceType:  h.Document.SourceType,
		SourceID:    h.Document.SourceID,
		HomeID:      h.Document.HomeID,
		RoomID:      h.Document.RoomID,
		FloorPlanID: h.Document.FloorPlanID,
	}
}

// scopeLocks serializes reindex passes: per-home passes exclude each other
// for the same home, and a full rebuild excludes everything.
type scopeLocks struct {
	global sync.RWMutex
	mu     sync.Mutex
	homes  map[uuid.UUID]*sync.Mutex
}

func (l *scopeLocks) lockHome(id uuid.UUID) func() {
	l.global.RLock()
	l.mu.Lock()
	if l.homes == nil {
		l.homes = make(map[uuid.UUID]*sync.Mutex)
	}
	hm, ok := l.homes[id]
	if !ok {
		hm = &sync.Mutex{}
		l.homes[id] = hm
	}
	l.mu.Unlock()
	hm.Lock()
	return func() {
		hm.Unlock()
		l.global.RUnlock()
	}
}

func (l *scopeLocks) lockAll() func() {
	l.global.Lock()
	return l.global.Unlock
}
