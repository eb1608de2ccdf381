package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider and store identifiers accepted in the config file.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreQdrant = "qdrant"

	ProviderCohere  = "cohere"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"

	ResponderExtractive = "extractive"
)

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Type     string        `yaml:"type"`
	Location string        `yaml:"location"`
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty"`
}

// ProviderConfig configures the embedding (and by default generation) provider.
type ProviderConfig struct {
	Type string `yaml:"type"`
	// Credential is a literal API key. Prefer CredentialEnv.
	Credential        string  `yaml:"credential,omitempty"`
	CredentialEnv     string  `yaml:"credential_env"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	EmbedModel        string  `yaml:"embed_model"`
	ChatModel         string  `yaml:"chat_model"`
	Dimension         int     `yaml:"dimension,omitempty"`
	BatchSize         int     `yaml:"batch_size"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	// MaxRetries is the number of extra attempts per call; 0 disables retries.
	MaxRetries        *int    `yaml:"max_retries,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ResponderConfig selects the answer generator.
type ResponderConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	DefaultK int `yaml:"default_k"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	SourcePath string          `yaml:"source_path,omitempty"`
	Store      StoreConfig     `yaml:"store"`
	Provider   ProviderConfig  `yaml:"provider"`
	Responder  ResponderConfig `yaml:"responder"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Log        LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreSQLite
	}
	if cfg.Store.Location == "" {
		cfg.Store.Location = "./rag_store"
	}
	if cfg.Store.Type == StoreQdrant {
		if cfg.Store.Qdrant == nil {
			cfg.Store.Qdrant = &QdrantConfig{}
		}
		if cfg.Store.Qdrant.URL == "" {
			cfg.Store.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Store.Qdrant.Collection == "" {
			cfg.Store.Qdrant.Collection = "rag_chunks"
		}
		if cfg.Store.Qdrant.TimeoutSecs == 0 {
			cfg.Store.Qdrant.TimeoutSecs = 15
		}
	}

	p := &cfg.Provider
	if p.Type == "" {
		p.Type = ProviderCohere
	}
	switch p.Type {
	case ProviderCohere:
		if p.EmbedModel == "" {
			p.EmbedModel = "embed-english-v3.0"
		}
	case ProviderOpenAI:
		if p.EmbedModel == "" {
			p.EmbedModel = "text-embedding-3-small"
		}
	case ProviderHashing:
		if p.Dimension == 0 {
			p.Dimension = 256
		}
	}
	if p.BatchSize == 0 {
		p.BatchSize = 96
	}
	if p.TimeoutSecs == 0 {
		p.TimeoutSecs = 30
	}
	if p.MaxRetries == nil {
		retries := 3
		p.MaxRetries = &retries
	}

	if cfg.Responder.Type == "" {
		if p.Type == ProviderHashing {
			cfg.Responder.Type = ResponderExtractive
		} else {
			cfg.Responder.Type = p.Type
		}
	}
	// The credential and chat model follow whichever component calls out:
	// the embedding provider, or the responder when embeddings are local.
	remote := p.Type
	if remote == ProviderHashing {
		remote = cfg.Responder.Type
	}
	switch remote {
	case ProviderCohere:
		if p.CredentialEnv == "" {
			p.CredentialEnv = "COHERE_API_KEY"
		}
	case ProviderOpenAI:
		if p.CredentialEnv == "" {
			p.CredentialEnv = "OPENAI_API_KEY"
		}
	}
	if p.ChatModel == "" {
		switch cfg.Responder.Type {
		case ProviderCohere:
			p.ChatModel = "command-a-03-2025"
		case ProviderOpenAI:
			p.ChatModel = "gpt-4o-mini"
		}
	}
	if cfg.Responder.MaxSentences == 0 {
		cfg.Responder.MaxSentences = 3
	}
	if cfg.Retrieval.DefaultK <= 0 {
		cfg.Retrieval.DefaultK = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate rejects unknown component types.
func (c *AppConfig) Validate() error {
	switch c.Store.Type {
	case StoreSQLite, StoreMemory, StoreQdrant:
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	switch c.Provider.Type {
	case ProviderCohere, ProviderOpenAI, ProviderHashing:
	default:
		return fmt.Errorf("unknown provider type %q", c.Provider.Type)
	}
	switch c.Responder.Type {
	case ProviderCohere, ProviderOpenAI, ResponderExtractive:
	default:
		return fmt.Errorf("unknown responder type %q", c.Responder.Type)
	}
	return nil
}

// Remote reports whether the provider or responder calls a network API.
func (c *AppConfig) Remote() bool {
	return c.Provider.Type != ProviderHashing || c.Responder.Type != ResponderExtractive
}

// Credential resolves the provider credential: the literal value if set,
// otherwise the configured environment variable.
func (c *AppConfig) Credential() (string, error) {
	if c.Provider.Credential != "" {
		return c.Provider.Credential, nil
	}
	if c.Provider.CredentialEnv != "" {
		if v := os.Getenv(c.Provider.CredentialEnv); v != "" {
			return v, nil
		}
	}
	if !c.Remote() {
		return "", nil
	}
	return "", fmt.Errorf("missing API key: set %s or provider.credential", c.Provider.CredentialEnv)
}

// Retries returns the configured retry count.
func (p ProviderConfig) Retries() int {
	if p.MaxRetries == nil {
		return 0
	}
	return *p.MaxRetries
}

// Timeout is the per-call deadline for provider requests.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}
