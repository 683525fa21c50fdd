package cmd

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelens/homelens/internal/config"
	"github.com/homelens/homelens/internal/database"
	"github.com/homelens/homelens/internal/domain"
	"github.com/homelens/homelens/internal/embed"
	"github.com/homelens/homelens/internal/index"
	"github.com/homelens/homelens/internal/log"
	"github.com/homelens/homelens/internal/rag"
)

// app holds everything a command needs after startup wiring.
type app struct {
	cfg    *config.Config
	logger log.Logger
	pool   *pgxpool.Pool
	engine *rag.Engine
}

// setup loads configuration, connects to the database, selects the index
// backend, and builds the engine. The returned shutdown function closes the
// connection pool.
func setup(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(log.Config{Level: cfg.LogLevelSlog(), JSON: cfg.LogJSON})

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, err
	}
	shutdown := pool.Close

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	model := index.ModelInfo{Name: embedder.ModelName(), Dimension: embedder.Dimension()}

	vectorOK, err := database.HasVectorSupport(ctx, pool)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	var store index.Store
	var retrieval rag.RetrievalLogger
	if vectorOK {
		if err := database.Migrate(cfg.PostgresURL(), logger); err != nil {
			shutdown()
			return nil, nil, err
		}
		pg, err := index.NewPostgres(ctx, pool, model, cfg.EFSearch, logger)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		store = pg
		retrieval = index.NewPostgresRetrievalLog(pool)
	} else {
		// Migrations need the vector extension (the knowledge schema has a
		// vector column), so in this mode they are skipped entirely: the
		// knowledge tables, retrieval_logs, and file_assets do not exist,
		// and query logging stays disabled.
		logger.Warn("pgvector extension unavailable, using in-process index",
			"host", cfg.PostgresHost, "database", cfg.PostgresDBName)
		store = index.NewMemory(model)
	}

	opts := []rag.Option{
		rag.WithChunking(cfg.ChunkMaxChars, cfg.ChunkOverlap),
		rag.WithTopK(cfg.TopK),
		rag.WithOversample(cfg.Oversample),
		rag.WithFusionConstant(cfg.RRFK0),
		rag.WithHybrid(cfg.Hybrid),
	}
	if retrieval != nil {
		opts = append(opts, rag.WithRetrievalLogger(retrieval))
	}

	reader := domain.NewPostgresReader(pool)
	engine := rag.New(store, embedder, reader, logger, opts...)

	return &app{cfg: cfg, logger: logger, pool: pool, engine: engine}, shutdown, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.EmbedderProvider {
	case config.EmbedderHashing:
		return embed.NewHashing(cfg.EmbedderDimension), nil
	case config.EmbedderGemini:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		return embed.NewGenkit(
			googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel),
			cfg.EmbedderModel,
			cfg.EmbedderDimension,
		), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidEmbedderProvider, cfg.EmbedderProvider)
	}
}
