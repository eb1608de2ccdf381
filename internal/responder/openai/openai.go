// Package openai answers queries with an OpenAI-compatible chat completion
// endpoint. Grounding texts are sent as a system prompt.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
	oaiembed "docrag/internal/embedding/openai"
	"docrag/internal/responder"
	"docrag/internal/upstream"
)

// Default configuration values.
const (
	DefaultModel   = goopenai.GPT4oMini
	DefaultTimeout = 60 * time.Second
)

// Config configures the chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Policy  *upstream.Policy
}

// Client is a chat completion client implementing the Responder interface.
type Client struct {
	api    *goopenai.Client
	model  string
	policy *upstream.Policy
}

var _ domain.Responder = (*Client)(nil)

// NewClient creates a chat client.
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
		api:    goopenai.NewClientWithConfig(oaiembed.ClientConfig(cfg.APIKey, cfg.BaseURL)),
		model:  cfg.Model,
		policy: cfg.Policy,
	}, nil
}

func (c *Client) Name() string { return "OpenAI" }

// Respond returns the first choice's content verbatim.
func (c *Client) Respond(ctx context.Context, query string, grounding []string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: responder.GroundingPrompt(grounding)},
			{Role: goopenai.ChatMessageRoleUser, Content: query},
		},
	}
	var resp goopenai.ChatCompletionResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return oaiembed.StatusFromAPI(err)
	})
	if err != nil {
		return "", responder.Generation("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
