// Package cohere embeds text with the Cohere embed API, using the
// "search_document" input type for stored chunks and "search_query" for queries.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docrag/internal/domain"
	"docrag/internal/upstream"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "embed-english-v3.0"
	DefaultTimeout = 30 * time.Second
	// MaxBatch is the most texts the embed endpoint accepts per call.
	MaxBatch = 96
)

const (
	inputDocument = "search_document"
	inputQuery    = "search_query"
)

var modelDimensions = map[string]int{
	"embed-english-v3.0":            1024,
	"embed-multilingual-v3.0":       1024,
	"embed-english-light-v3.0":      384,
	"embed-multilingual-light-v3.0": 384,
}

// Config configures the Cohere embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Policy applies timeouts and retries to each call. Nil uses a 30s
	// timeout with no retries.
	Policy     *upstream.Policy
	HTTPClient *http.Client
}

// Client is a Cohere embeddings client.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	policy    *upstream.Policy
	client    *http.Client
}

// NewClient creates a new embeddings client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Policy == nil {
		cfg.Policy = upstream.New(upstream.Config{Timeout: DefaultTimeout})
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: modelDimensions[cfg.Model],
		policy:    cfg.Policy,
		client:    cfg.HTTPClient,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "cohere" }

// Dimension returns the vector size; zero until learned for unknown models.
func (c *Client) Dimension() int { return c.dimension }

// EmbedDocuments embeds chunk texts for storage.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatch {
		end := min(start+MaxBatch, len(texts))
		vecs, err := c.embed(ctx, texts[start:end], inputDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a search query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, inputQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model, InputType: inputType})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", domain.ErrEmbedding, err)
	}

	var out embedResponse
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embed", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return upstream.NewStatusError(resp, payload)
		}
		return json.Unmarshal(payload, &out)
	})
	if err != nil {
		return nil, domain.Upstream(domain.ErrEmbedding, fmt.Errorf("cohere embed: %w", err))
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: cohere returned %d embeddings for %d texts", domain.ErrEmbedding, len(out.Embeddings), len(texts))
	}
	if c.dimension == 0 && len(out.Embeddings[0]) > 0 {
		c.dimension = len(out.Embeddings[0])
	}
	return out.Embeddings, nil
}
