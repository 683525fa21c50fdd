package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/homelens/homelens/internal/knowledge"
	"github.com/homelens/homelens/internal/log"
)

// Postgres is a Store backed by PostgreSQL with the pgvector extension.
// Similarity ordering happens in the database via the cosine distance
// operator, with scope filters pushed into the same query so the HNSW index
// search and the filter run server-side.
type Postgres struct {
	pool     *pgxpool.Pool
	model    ModelInfo
	efSearch int
	logger   log.Logger

	mu      sync.RWMutex
	stored  ModelInfo
	hasMeta bool
}

// NewPostgres creates a pgvector-backed store for the given embedding model.
// On first use it sizes the embedding column to the model's dimension and
// builds the HNSW index; on later runs it reads the recorded model so
// callers can detect a stale index.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, model ModelInfo, efSearch int, logger log.Logger) (*Postgres, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Postgres{pool: pool, model: model, efSearch: efSearch, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

var _ Store = (*Postgres)(nil)

// Name implements Store.
func (s *Postgres) Name() string { return "pgvector" }

// ensureSchema reads the recorded model and, when the index has never been
// written, shapes the embedding column and vector index for the active one.
// The embedding column is created untyped by the migration because the
// width depends on runtime configuration.
func (s *Postgres) ensureSchema(ctx context.Context) error {
	active := s.activeModel()
	var stored ModelInfo
	err := s.pool.QueryRow(ctx,
		`SELECT model_name, dimension FROM index_meta WHERE id = 1`).Scan(&stored.Name, &stored.Dimension)
	switch {
	case err == nil:
		s.mu.Lock()
		s.stored, s.hasMeta = stored, true
		s.mu.Unlock()
		if stored != active {
			s.logger.Warn("index built with a different embedding model",
				"stored_model", stored.Name, "stored_dimension", stored.Dimension,
				"active_model", active.Name, "active_dimension", active.Dimension)
		}
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return s.initSchema(ctx)
	default:
		return fmt.Errorf("reading index meta: %w", err)
	}
}

func (s *Postgres) initSchema(ctx context.Context) error {
	active := s.activeModel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning schema init: %w", err)
	}
	defer tx.Rollback(ctx)

	// Dimension comes from validated configuration, never user input, so
	// interpolating it into DDL is safe. DDL cannot take bind parameters.
	stmts := []string{
		fmt.Sprintf(`ALTER TABLE knowledge_chunks ALTER COLUMN embedding TYPE vector(%d)`, active.Dimension),
		`DROP INDEX IF EXISTS idx_knowledge_chunks_embedding`,
		`CREATE INDEX idx_knowledge_chunks_embedding ON knowledge_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("shaping embedding column: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO index_meta (id, model_name, dimension) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET model_name = EXCLUDED.model_name,
		                                dimension = EXCLUDED.dimension,
		                                updated_at = now()`,
		active.Name, active.Dimension); err != nil {
		return fmt.Errorf("recording index model: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema init: %w", err)
	}

	s.mu.Lock()
	s.stored, s.hasMeta = active, true
	s.mu.Unlock()
	s.logger.Info("initialized vector index",
		"model", active.Name, "dimension", active.Dimension)
	return nil
}

func (s *Postgres) activeModel() ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Upsert implements Store. The delete and inserts run in one transaction so
// concurrent readers see either the old chunk set or the new one.
func (s *Postgres) Upsert(ctx context.Context, doc knowledge.Document, chunks []knowledge.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert %s: %d chunks but %d vectors", doc.ID, len(chunks), len(vectors))
	}
	s.mu.RLock()
	stored, hasMeta, active := s.stored, s.hasMeta, s.model
	s.mu.RUnlock()
	if hasMeta && stored != active {
		return fmt.Errorf("upsert %s: stored model %s/%d, active %s/%d: %w",
			doc.ID, stored.Name, stored.Dimension, active.Name, active.Dimension, ErrModelMismatch)
	}

	meta, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("encoding document metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM knowledge_documents WHERE source_type = $1 AND source_id = $2`,
		string(doc.SourceType), doc.SourceID); err != nil {
		return fmt.Errorf("removing stale document: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO knowledge_documents
		   (id, title, body, source_type, source_id, home_id, room_id, floor_plan_id, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.Title, doc.Text, string(doc.SourceType), doc.SourceID,
		doc.HomeID, doc.RoomID, doc.FloorPlanID, meta); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(
			`INSERT INTO knowledge_chunks (id, document_id, seq, body, embedding)
			 VALUES ($1, $2, $3, $4, $5::vector)`,
			c.ID, c.DocumentID, c.Seq, c.Text, pgvector.NewVector(vectors[i]).String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

const hitColumns = `c.id, c.document_id, c.seq, c.body,
	d.title, d.body, d.source_type, d.source_id, d.home_id, d.room_id, d.floor_plan_id, d.metadata`

// Search implements Store. Runs inside a transaction so the HNSW search
// breadth can be raised for this query alone with SET LOCAL.
func (s *Postgres) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning search: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.efSearch > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, s.efSearch)); err != nil {
			return nil, fmt.Errorf("setting search breadth: %w", err)
		}
	}

	vec := pgvector.NewVector(vector).String()
	rows, err := tx.Query(ctx,
		`SELECT `+hitColumns+`,
		        (1 - (c.embedding <=> $1::vector))::float8 AS score
		 FROM knowledge_chunks c
		 JOIN knowledge_documents d ON d.id = c.document_id
		 WHERE ($2::uuid IS NULL OR d.home_id = $2)
		   AND ($3::uuid IS NULL OR d.room_id = $3)
		   AND ($4::text IS NULL OR d.metadata->>'floor_level' = $4)
		 ORDER BY c.embedding <=> $1::vector ASC, c.id ASC
		 LIMIT $5`,
		vec, filter.HomeID, filter.RoomID, floorLevelArg(filter), limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("searching by vector: %w", err)
	}
	hits, err := scanHits(rows)
	if err != nil {
		return nil, err
	}
	return hits, tx.Commit(ctx)
}

// SearchKeyword implements Store. Uses websearch-style query parsing and
// ts_rank over the stored tsvector; chunks that do not match the query at
// all are excluded by the @@ predicate.
func (s *Postgres) SearchKeyword(ctx context.Context, query string, filter Filter, limit int) ([]Hit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+hitColumns+`,
		        ts_rank(c.body_tsv, q)::float8 AS score
		 FROM knowledge_chunks c
		 JOIN knowledge_documents d ON d.id = c.document_id,
		      websearch_to_tsquery('english', $1) q
		 WHERE c.body_tsv @@ q
		   AND ($2::uuid IS NULL OR d.home_id = $2)
		   AND ($3::uuid IS NULL OR d.room_id = $3)
		   AND ($4::text IS NULL OR d.metadata->>'floor_level' = $4)
		 ORDER BY score DESC, c.id ASC
		 LIMIT $5`,
		query, filter.HomeID, filter.RoomID, floorLevelArg(filter), limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("searching by keyword: %w", err)
	}
	return scanHits(rows)
}

// DeleteScope implements Store. A full wipe also clears the recorded model
// and reshapes the embedding column for this store's model.
func (s *Postgres) DeleteScope(ctx context.Context, homeID *uuid.UUID) error {
	if homeID != nil {
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM knowledge_documents WHERE home_id = $1`, *homeID); err != nil {
			return fmt.Errorf("deleting home scope: %w", err)
		}
		return nil
	}
	return s.wipe(ctx)
}

// Reset implements Store. The wipe reshapes the embedding column for the
// given model, which is what lets a full rebuild switch embedding models.
func (s *Postgres) Reset(ctx context.Context, model ModelInfo) error {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return s.wipe(ctx)
}

func (s *Postgres) wipe(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning full delete: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_documents`); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("clearing index meta: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing full delete: %w", err)
	}

	s.mu.Lock()
	s.hasMeta = false
	s.mu.Unlock()
	return s.initSchema(ctx)
}

// ModelInfo implements Store.
func (s *Postgres) ModelInfo(ctx context.Context) (ModelInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return ModelInfo{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored, s.hasMeta, nil
}

// Stats implements Store.
func (s *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM knowledge_documents),
		        (SELECT count(*) FROM knowledge_chunks)`).Scan(&st.Documents, &st.Chunks)
	if err != nil {
		return Stats{}, fmt.Errorf("counting index contents: %w", err)
	}
	return st, nil
}

func scanHits(rows pgx.Rows) ([]Hit, error) {
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			st   string
			meta []byte
		)
		if err := rows.Scan(
			&h.Chunk.ID, &h.Chunk.DocumentID, &h.Chunk.Seq, &h.Chunk.Text,
			&h.Document.Title, &h.Document.Text, &st, &h.Document.SourceID,
			&h.Document.HomeID, &h.Document.RoomID, &h.Document.FloorPlanID, &meta,
			&h.Score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Document.ID = h.Chunk.DocumentID
		h.Document.SourceType = knowledge.SourceType(st)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Document.Metadata); err != nil {
				return nil, fmt.Errorf("decoding document metadata: %w", err)
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func floorLevelArg(filter Filter) *string {
	if filter.FloorLevel == nil {
		return nil
	}
	v := strconv.Itoa(*filter.FloorLevel)
	return &v
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 32
	}
	return limit
}
