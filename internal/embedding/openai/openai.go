// Package openai implements embedding.Embedder against an OpenAI-compatible
// embeddings endpoint. Local servers (Ollama, llama.cpp) that speak the same
// protocol work unchanged by pointing BaseURL at them.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultDimension matches the vector column width in the database schema.
const DefaultDimension = 768

const maxRetries = 5

// Config configures the embeddings client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1" or a local
	// Ollama endpoint. Required.
	BaseURL string

	// APIKey authorizes requests. May be empty for local servers.
	APIKey string

	// Model names the embedding model to request.
	Model string

	// Dimension is the expected vector length. Defaults to DefaultDimension.
	Dimension int

	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration
}

// Client calls an OpenAI-compatible /embeddings endpoint with exponential
// backoff on transient failures. Safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
	logger    *slog.Logger
}

// NewClient creates a Client from cfg. A nil logger falls back to
// slog.Default().
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("embedding base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}, nil
}

// Name returns the model identifier for logging and vector metadata.
func (c *Client) Name() string { return c.model }

// Dimension returns the configured vector length.
func (c *Client) Dimension() int { return c.dimension }

// Embed requests a vector for text, retrying rate limits and server errors
// with exponential backoff. Honors Retry-After when the server sends one.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	url := c.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}

		vec, retryable, err := c.doEmbed(ctx, url, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Debug("embedding request failed, retrying", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("embedding after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) doEmbed(ctx context.Context, url, text string) (vec []float32, retryable bool, err error) {
	body, err := json.Marshal(map[string]string{
		"input": text,
		"model": c.model,
	})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				select {
				case <-ctx.Done():
					return nil, false, ctx.Err()
				case <-time.After(time.Duration(secs) * time.Second):
				}
			}
		}
		return nil, true, fmt.Errorf("embeddings endpoint returned %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("embeddings endpoint returned %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	vec, err = decodeEmbedding(payload)
	if err != nil {
		return nil, false, err
	}
	if len(vec) != c.dimension {
		return nil, false, fmt.Errorf("model returned %d dimensions, expected %d", len(vec), c.dimension)
	}
	return vec, false, nil
}

// decodeEmbedding accepts both the OpenAI response shape and the Ollama
// native shape.
func decodeEmbedding(payload []byte) ([]float32, error) {
	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil &&
		len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
		return openaiOut.Data[0].Embedding, nil
	}

	var ollamaOut struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}

	return nil, errors.New("no embedding in response")
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
