// Package openai embeds text with an OpenAI-compatible embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
	"docrag/internal/upstream"
)

// Default configuration values.
const (
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 30 * time.Second
)

var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	api       *goopenai.Client
	model     string
	dimension int
	policy    *upstream.Policy
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	// BaseURL overrides the API root, e.g. for Ollama or a proxy.
	BaseURL string
	APIKey  string
	Model   string
	Policy  *upstream.Policy
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Policy == nil {
		cfg.Policy = upstream.New(upstream.Config{Timeout: DefaultTimeout})
	}
	return &Client{
		api:       goopenai.NewClientWithConfig(ClientConfig(cfg.APIKey, cfg.BaseURL)),
		model:     cfg.Model,
		dimension: modelDimensions[cfg.Model],
		policy:    cfg.Policy,
	}, nil
}

// ClientConfig builds a go-openai configuration with an optional base URL.
func ClientConfig(apiKey, baseURL string) goopenai.ClientConfig {
	c := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return c
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the vector size; zero until learned for unknown models.
func (c *Client) Dimension() int { return c.dimension }

// EmbedDocuments embeds chunk texts for storage.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts)
}

// EmbedQuery embeds a search query. OpenAI models have no separate query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp goopenai.EmbeddingResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: goopenai.EmbeddingModel(c.model),
		})
		return StatusFromAPI(err)
	})
	if err != nil {
		return nil, domain.Upstream(domain.ErrEmbedding, fmt.Errorf("openai embeddings: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d texts", domain.ErrEmbedding, len(resp.Data), len(texts))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if c.dimension == 0 && len(out[0]) > 0 {
		c.dimension = len(out[0])
	}
	return out, nil
}

// StatusFromAPI converts go-openai HTTP errors into upstream.StatusError so
// the retry policy can classify them. Other errors pass through unchanged.
func StatusFromAPI(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &upstream.StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &upstream.StatusError{Code: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
