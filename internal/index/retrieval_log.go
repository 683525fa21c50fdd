package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelens/homelens/internal/knowledge"
)

// PostgresRetrievalLog appends served queries to the retrieval_logs table
// for offline evaluation. Failures here must never fail a query; callers
// log and continue.
type PostgresRetrievalLog struct {
	pool *pgxpool.Pool
}

// NewPostgresRetrievalLog creates a log writer over the given pool.
func NewPostgresRetrievalLog(pool *pgxpool.Pool) *PostgresRetrievalLog {
	return &PostgresRetrievalLog{pool: pool}
}

// Record writes one retrieval log entry.
func (l *PostgresRetrievalLog) Record(ctx context.Context, entry knowledge.RetrievalLog) error {
	filters, err := json.Marshal(metadataOrEmpty(entry.Filters))
	if err != nil {
		return fmt.Errorf("encoding retrieval filters: %w", err)
	}
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO retrieval_logs (id, query, filters, chunk_ids, scores)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Query, filters, entry.ChunkIDs, entry.Scores); err != nil {
		return fmt.Errorf("recording retrieval: %w", err)
	}
	return nil
}
