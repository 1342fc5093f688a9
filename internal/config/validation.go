package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "campuskb_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 2. Embedding configuration
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidEmbedding)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidEmbedding)
	}
	// 768 matches the pgvector column in the schema; see db/migrations.
	if c.Embedding.Dimension != 768 {
		return fmt.Errorf("%w: dimension must be 768 to match the vector schema, got %d",
			ErrInvalidEmbedding, c.Embedding.Dimension)
	}

	// 3. Scraper configuration
	if c.Scraper.Parallelism < 1 || c.Scraper.Parallelism > 32 {
		return fmt.Errorf("%w: parallelism must be between 1 and 32, got %d",
			ErrInvalidScraper, c.Scraper.Parallelism)
	}
	if c.Scraper.DelayMS < 0 {
		return fmt.Errorf("%w: delay_ms cannot be negative, got %d", ErrInvalidScraper, c.Scraper.DelayMS)
	}
	if c.Scraper.TimeoutMS < 1 {
		return fmt.Errorf("%w: timeout_ms must be positive, got %d", ErrInvalidScraper, c.Scraper.TimeoutMS)
	}

	// 4. Chunking configuration
	ch := c.Chunking
	if ch.MinSize < 1 || ch.TargetSize < ch.MinSize || ch.MaxSize < ch.TargetSize {
		return fmt.Errorf("%w: need 1 <= min_size <= target_size <= max_size, got min=%d target=%d max=%d",
			ErrInvalidChunking, ch.MinSize, ch.TargetSize, ch.MaxSize)
	}
	if ch.Overlap < 0 || ch.Overlap >= ch.TargetSize {
		return fmt.Errorf("%w: overlap must be in [0, target_size), got %d", ErrInvalidChunking, ch.Overlap)
	}

	// 5. Retrieval configuration
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("%w: top_k must be between 1 and 50, got %d", ErrInvalidRetrieval, c.Retrieval.TopK)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be in [0, 1], got %v",
			ErrInvalidRetrieval, c.Retrieval.MinSimilarity)
	}

	return nil
}
