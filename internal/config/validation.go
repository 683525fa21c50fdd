package config

import (
	"fmt"
)

// validSSLModes are the SSL modes accepted by libpq-compatible drivers.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for out-of-range or inconsistent values.
// It returns a sentinel error (wrapped with context) on the first violation
// so callers can match with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	switch c.EmbedderProvider {
	case EmbedderHashing, EmbedderGemini:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidEmbedderProvider, c.EmbedderProvider, EmbedderHashing, EmbedderGemini)
	}
	if c.EmbedderDimension < 8 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: %d (must be 8-4096)", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	if c.ChunkMaxChars < 64 {
		return fmt.Errorf("%w: chunk_max_chars %d (must be >= 64)", ErrInvalidChunking, c.ChunkMaxChars)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxChars {
		return fmt.Errorf("%w: chunk_overlap %d (must be 0 <= overlap < chunk_max_chars)",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k %d (must be 1-100)", ErrInvalidRetrieval, c.TopK)
	}
	if c.Oversample < 1 || c.Oversample > 20 {
		return fmt.Errorf("%w: oversample %d (must be 1-20)", ErrInvalidRetrieval, c.Oversample)
	}
	if c.RRFK0 < 1 {
		return fmt.Errorf("%w: rrf_k0 %d (must be >= 1)", ErrInvalidRetrieval, c.RRFK0)
	}
	if c.EFSearch < 1 || c.EFSearch > 1000 {
		return fmt.Errorf("%w: ef_search %d (must be 1-1000)", ErrInvalidRetrieval, c.EFSearch)
	}

	return nil
}
