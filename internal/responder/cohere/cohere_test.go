package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/upstream"
)

func TestRespond(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "Apples are red.", "generation_id": "g1"})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)

	answer, err := c.Respond(context.Background(), "What colour are apples?", []string{"Apple is red.", "Banana is yellow."})
	require.NoError(t, err)
	assert.Equal(t, "Apples are red.", answer)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "What colour are apples?", got.Message)
	assert.Equal(t, []document{{Text: "Apple is red."}, {Text: "Banana is yellow."}}, got.Documents)
}

func TestRespond_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		policy      upstream.Config
		wantTimeout bool
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"invalid request"}`, http.StatusBadRequest)
			},
		},
		{
			name: "deadline",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			policy:      upstream.Config{Timeout: 30 * time.Millisecond},
			wantTimeout: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Policy: upstream.New(tt.policy)})
			require.NoError(t, err)

			_, err = c.Respond(context.Background(), "q", nil)
			assert.ErrorIs(t, err, domain.ErrGeneration)
			assert.Equal(t, tt.wantTimeout, errors.Is(err, domain.ErrUpstreamTimeout))
		})
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
