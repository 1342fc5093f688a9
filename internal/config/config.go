// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.campuskb/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Storage: PostgreSQL connection (see storage.go)
//   - Embedding: embedding service endpoint and model
//   - Scraper: fetch politeness, parallelism, and safety limits
//   - Chunking: chunk size limits
//   - Retrieval: neighbor count and similarity floor
//   - Server: HTTP address and CORS origins
//
// Security: sensitive data (passwords, API keys) are never logged; config
// directory uses 0750 permissions.
//
// Error handling uses sentinel errors for errors.Is() checks, wrapped with
// context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidEmbedding indicates the embedding configuration is invalid.
	ErrInvalidEmbedding = errors.New("invalid embedding configuration")

	// ErrInvalidScraper indicates the scraper configuration is invalid.
	ErrInvalidScraper = errors.New("invalid scraper configuration")

	// ErrInvalidChunking indicates the chunking limits are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates the retrieval configuration is invalid.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")
)

// EmbeddingConfig selects the embedding service. The API key is read from
// the EMBEDDING_API_KEY environment variable; local Ollama-style endpoints
// need none.
type EmbeddingConfig struct {
	BaseURL   string `mapstructure:"base_url" json:"base_url"`
	Model     string `mapstructure:"model" json:"model"`
	Dimension int    `mapstructure:"dimension" json:"dimension"`
	APIKey    string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	TimeoutMS int    `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// ScraperConfig tunes content fetching.
type ScraperConfig struct {
	UserAgent        string `mapstructure:"user_agent" json:"user_agent"`
	TimeoutMS        int    `mapstructure:"timeout_ms" json:"timeout_ms"`
	DelayMS          int    `mapstructure:"delay_ms" json:"delay_ms"`
	Parallelism      int    `mapstructure:"parallelism" json:"parallelism"`
	MaxResponseBytes int64  `mapstructure:"max_response_bytes" json:"max_response_bytes"`

	// AllowPrivateHosts disables SSRF validation for deployments that
	// scrape intranet sources.
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts" json:"allow_private_hosts"`
}

// ChunkingConfig sets the chunk size limits in characters.
type ChunkingConfig struct {
	TargetSize int `mapstructure:"target_size" json:"target_size"`
	MaxSize    int `mapstructure:"max_size" json:"max_size"`
	MinSize    int `mapstructure:"min_size" json:"min_size"`
	Overlap    int `mapstructure:"overlap" json:"overlap"`
}

// RetrievalConfig tunes the query path.
type RetrievalConfig struct {
	TopK          int     `mapstructure:"top_k" json:"top_k"`
	MinSimilarity float64 `mapstructure:"min_similarity" json:"min_similarity"`
	TimeoutMS     int     `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update
// MarshalJSON.
type Config struct {
	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
	Scraper   ScraperConfig   `mapstructure:"scraper" json:"scraper"`
	Chunking  ChunkingConfig  `mapstructure:"chunking" json:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`

	// PromptDir points at override templates for answer prompts; empty
	// uses the built-ins.
	PromptDir string `mapstructure:"prompt_dir" json:"prompt_dir"`

	// Server configuration (serve mode only)
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".campuskb")

	// Ensure directory exists (0750 permission)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "campuskb")
	viper.SetDefault("postgres_password", "campuskb_dev_password")
	viper.SetDefault("postgres_db_name", "campuskb")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Embedding defaults (local Ollama endpoint, no API key)
	viper.SetDefault("embedding.base_url", "http://localhost:11434")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeout_ms", 30000)

	// Scraper defaults
	viper.SetDefault("scraper.user_agent", "")
	viper.SetDefault("scraper.timeout_ms", 30000)
	viper.SetDefault("scraper.delay_ms", 1000)
	viper.SetDefault("scraper.parallelism", 4)
	viper.SetDefault("scraper.max_response_bytes", 10*1024*1024)
	viper.SetDefault("scraper.allow_private_hosts", false)

	// Chunking defaults
	viper.SetDefault("chunking.target_size", 1000)
	viper.SetDefault("chunking.max_size", 1500)
	viper.SetDefault("chunking.min_size", 200)
	viper.SetDefault("chunking.overlap", 200)

	// Retrieval defaults
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.min_similarity", 0.5)
	viper.SetDefault("retrieval.timeout_ms", 10000)

	// Server defaults
	viper.SetDefault("server_addr", "127.0.0.1:8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
}

// bindEnvVariables binds environment variable overrides explicitly.
// DATABASE_URL is handled separately in parseDatabaseURL.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("embedding.api_key", "EMBEDDING_API_KEY")
	mustBind("embedding.base_url", "CAMPUSKB_EMBEDDING_URL")
	mustBind("embedding.model", "CAMPUSKB_EMBEDDING_MODEL")

	mustBind("server_addr", "CAMPUSKB_ADDR")
	mustBind("cors_origins", "CAMPUSKB_CORS_ORIGINS")

	mustBind("prompt_dir", "CAMPUSKB_PROMPT_DIR")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: for secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: this defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - Embedding.APIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.Embedding.APIKey = maskSecret(a.Embedding.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
