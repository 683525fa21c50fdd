// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (HOMELENS_ prefix, plus DATABASE_URL)
//  2. Config file (~/.homelens/config.yaml or ./config.yaml)
//  3. Default values
//
// Main categories:
//   - Postgres: connection to the backing store (see storage.go)
//   - Embedder: which embedding implementation produces vectors
//   - Chunking: document splitting policy
//   - Retrieval: top-k, oversampling, rank fusion and ANN parameters
//
// Sensitive data (passwords, API keys) is never logged. Validation lives in
// validation.go and uses sentinel errors for errors.Is checks.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidEmbedderProvider indicates an unknown embedder provider.
	ErrInvalidEmbedderProvider = errors.New("invalid embedder provider")

	// ErrInvalidEmbedderDimension indicates an out-of-range embedding dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates chunk size or overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking policy")

	// ErrInvalidRetrieval indicates retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval parameters")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Embedder provider identifiers used in Config.EmbedderProvider.
const (
	// EmbedderHashing is the default deterministic feature-hashing embedder.
	// It needs no credentials and is stable across runs and processes.
	EmbedderHashing = "hashing"

	// EmbedderGemini uses a Gemini embedding model via Genkit. Requires
	// GEMINI_API_KEY, and a full reindex when switching from another model.
	EmbedderGemini = "gemini"
)

// DefaultGeminiEmbedderModel is the embedder model used when the gemini
// provider is selected and no model is configured.
const DefaultGeminiEmbedderModel = "text-embedding-004"

// Config stores application configuration.
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json"`

	// Postgres connection (see storage.go for DSN/URL builders)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Embedder selection
	EmbedderProvider  string `mapstructure:"embedder_provider"`  // "hashing" (default) or "gemini"
	EmbedderModel     string `mapstructure:"embedder_model"`     // model name for the gemini provider
	EmbedderDimension int    `mapstructure:"embedder_dimension"` // vector width for the hashing provider

	// Chunking policy
	ChunkMaxChars int `mapstructure:"chunk_max_chars"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`

	// Retrieval parameters
	TopK       int  `mapstructure:"top_k"`
	Oversample int  `mapstructure:"oversample"` // candidate multiplier for each ranking leg
	RRFK0      int  `mapstructure:"rrf_k0"`     // rank fusion constant
	Hybrid     bool `mapstructure:"hybrid"`     // merge keyword relevance with vector similarity
	EFSearch   int  `mapstructure:"ef_search"`  // hnsw candidate list size on the native backend
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".homelens")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("HOMELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "homelens")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "homelens")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("embedder_provider", EmbedderHashing)
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("embedder_dimension", 256)

	v.SetDefault("chunk_max_chars", 1200)
	v.SetDefault("chunk_overlap", 120)

	v.SetDefault("top_k", 8)
	v.SetDefault("oversample", 4)
	v.SetDefault("rrf_k0", 60)
	v.SetDefault("hybrid", true)
	v.SetDefault("ef_search", 80)
}

// LogLevelSlog maps the configured level string to a slog.Level.
// Unknown values fall back to info rather than failing startup.
func (c *Config) LogLevelSlog() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
