// Package cohere answers queries with the Cohere chat API, passing retrieved
// texts as grounding documents.
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
	"docrag/internal/responder"
	"docrag/internal/upstream"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "command-a-03-2025"
	DefaultTimeout = 60 * time.Second
)

// Config configures the chat client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Policy     *upstream.Policy
	HTTPClient *http.Client
}

// Client is a Cohere chat client implementing the Responder interface.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	policy  *upstream.Policy
	client  *http.Client
}

var _ domain.Responder = (*Client)(nil)

// NewClient creates a chat client.
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
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		policy:  cfg.Policy,
		client:  cfg.HTTPClient,
	}, nil
}

func (c *Client) Name() string { return "Cohere" }

type document struct {
	Text string `json:"text"`
}

type chatRequest struct {
	Model     string     `json:"model"`
	Message   string     `json:"message"`
	Documents []document `json:"documents"`
}

type chatResponse struct {
	Text string `json:"text"`
}

// Respond returns the model's answer verbatim.
func (c *Client) Respond(ctx context.Context, query string, grounding []string) (string, error) {
	docs := make([]document, len(grounding))
	for i, g := range grounding {
		docs[i] = document{Text: g}
	}
	body, err := json.Marshal(chatRequest{Model: c.model, Message: query, Documents: docs})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", domain.ErrGeneration, err)
	}

	var out chatResponse
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
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
		return "", responder.Generation("cohere", err)
	}
	return out.Text, nil
}
