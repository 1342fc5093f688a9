package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "campuskb",
		PostgresPassword: "a_long_enough_password",
		PostgresDBName:   "campuskb",
		PostgresSSLMode:  "disable",
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dimension: 768,
			TimeoutMS: 30000,
		},
		Scraper: ScraperConfig{
			TimeoutMS:        30000,
			DelayMS:          1000,
			Parallelism:      4,
			MaxResponseBytes: 10 * 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			TargetSize: 1000,
			MaxSize:    1500,
			MinSize:    200,
			Overlap:    200,
		},
		Retrieval: RetrievalConfig{
			TopK:          5,
			MinSimilarity: 0.5,
			TimeoutMS:     10000,
		},
		ServerAddr: "127.0.0.1:8080",
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port too low", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"port too high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"empty password", func(c *Config) { c.PostgresPassword = "" }, ErrInvalidPostgresPassword},
		{"short password", func(c *Config) { c.PostgresPassword = "short" }, ErrInvalidPostgresPassword},
		{"deprecated ssl mode", func(c *Config) { c.PostgresSSLMode = "prefer" }, ErrInvalidPostgresSSLMode},
		{"empty ssl mode", func(c *Config) { c.PostgresSSLMode = "" }, ErrInvalidPostgresSSLMode},
		{"empty embedding url", func(c *Config) { c.Embedding.BaseURL = "" }, ErrInvalidEmbedding},
		{"empty embedding model", func(c *Config) { c.Embedding.Model = "" }, ErrInvalidEmbedding},
		{"wrong embedding dimension", func(c *Config) { c.Embedding.Dimension = 1536 }, ErrInvalidEmbedding},
		{"zero parallelism", func(c *Config) { c.Scraper.Parallelism = 0 }, ErrInvalidScraper},
		{"negative delay", func(c *Config) { c.Scraper.DelayMS = -1 }, ErrInvalidScraper},
		{"zero scrape timeout", func(c *Config) { c.Scraper.TimeoutMS = 0 }, ErrInvalidScraper},
		{"min above target", func(c *Config) { c.Chunking.MinSize = 1200 }, ErrInvalidChunking},
		{"max below target", func(c *Config) { c.Chunking.MaxSize = 900 }, ErrInvalidChunking},
		{"overlap at target", func(c *Config) { c.Chunking.Overlap = 1000 }, ErrInvalidChunking},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }, ErrInvalidRetrieval},
		{"similarity above one", func(c *Config) { c.Retrieval.MinSimilarity = 1.5 }, ErrInvalidRetrieval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
