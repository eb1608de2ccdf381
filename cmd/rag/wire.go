package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"docrag/internal/config"
	"docrag/internal/embedding"
	cohereembed "docrag/internal/embedding/cohere"
	"docrag/internal/embedding/hashing"
	openaiembed "docrag/internal/embedding/openai"
	"docrag/internal/responder"
	coherechat "docrag/internal/responder/cohere"
	"docrag/internal/responder/extractive"
	openaichat "docrag/internal/responder/openai"
	"docrag/internal/service"
	"docrag/internal/upstream"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/memory"
	"docrag/internal/vectorstore/qdrant"
	"docrag/internal/vectorstore/sqlite"
)

// build assembles the pipeline described by cfg.
func build(cfg *config.AppConfig, log *zap.Logger, out io.Writer) (*service.Pipeline, error) {
	credential, err := cfg.Credential()
	if err != nil {
		return nil, err
	}
	policy := upstream.New(upstream.Config{
		Timeout:           cfg.Provider.Timeout(),
		MaxRetries:        cfg.Provider.Retries(),
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	})

	emb, err := newEmbedder(cfg.Provider, credential, policy)
	if err != nil {
		return nil, err
	}
	resp, err := newResponder(cfg, credential, policy)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	log.Debug("pipeline assembled",
		zap.String("embedder", emb.Name()),
		zap.String("responder", resp.Name()),
		zap.String("store", cfg.Store.Type),
		zap.String("location", cfg.Store.Location),
	)

	opts := []service.Option{service.WithLogger(log)}
	if out != nil {
		opts = append(opts, service.WithOutput(out))
	}
	return service.New(service.Config{
		SourcePath:         cfg.SourcePath,
		StoreLocation:      cfg.Store.Location,
		ProviderCredential: credential,
		DefaultK:           cfg.Retrieval.DefaultK,
		BatchSize:          cfg.Provider.BatchSize,
	}, emb, store, resp, opts...), nil
}

func newEmbedder(p config.ProviderConfig, credential string, policy *upstream.Policy) (embedding.Embedder, error) {
	switch p.Type {
	case config.ProviderCohere:
		return cohereembed.NewClient(cohereembed.Config{
			BaseURL: p.BaseURL,
			APIKey:  credential,
			Model:   p.EmbedModel,
			Policy:  policy,
		})
	case config.ProviderOpenAI:
		return openaiembed.NewClient(openaiembed.Config{
			BaseURL: p.BaseURL,
			APIKey:  credential,
			Model:   p.EmbedModel,
			Policy:  policy,
		})
	case config.ProviderHashing:
		return hashing.NewEmbedder(p.Dimension), nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", p.Type)
}

func newResponder(cfg *config.AppConfig, credential string, policy *upstream.Policy) (responder.Responder, error) {
	p := cfg.Provider
	switch cfg.Responder.Type {
	case config.ProviderCohere:
		return coherechat.NewClient(coherechat.Config{
			BaseURL: p.BaseURL,
			APIKey:  credential,
			Model:   p.ChatModel,
			Policy:  policy,
		})
	case config.ProviderOpenAI:
		return openaichat.NewClient(openaichat.Config{
			BaseURL: p.BaseURL,
			APIKey:  credential,
			Model:   p.ChatModel,
			Policy:  policy,
		})
	case config.ResponderExtractive:
		return extractive.New(cfg.Responder.MaxSentences), nil
	}
	return nil, fmt.Errorf("unknown responder: %s", cfg.Responder.Type)
}

func newStore(s config.StoreConfig) (vectorstore.Storage, error) {
	switch s.Type {
	case config.StoreSQLite:
		return sqlite.Open(s.Location)
	case config.StoreMemory:
		return memory.Open(s.Location)
	case config.StoreQdrant:
		q := s.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	}
	return nil, fmt.Errorf("unknown vector store: %s", s.Type)
}
