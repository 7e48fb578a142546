package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendFile     = "file"
	BackendPostgres = "postgres"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
	Index     IndexConfig     `yaml:"index"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EmbeddingConfig selects the model used both at index time and at query time.
// Changing it requires re-running the indexer for every dataset.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	TopK          int `yaml:"top_k"`
	ContextChars  int `yaml:"context_chars"`
	WordsPerChunk int `yaml:"words_per_chunk"`
}

type IndexConfig struct {
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LoadConfig reads the YAML file at path. A missing file is not an error:
// defaults are returned instead. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOllama
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultBaseURL(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model == "" {
		if cfg.Embedding.Provider == ProviderOpenAI {
			cfg.Embedding.Model = "text-embedding-3-small"
		} else {
			cfg.Embedding.Model = "all-minilm"
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 512
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOllama
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultBaseURL(cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		if cfg.LLM.Provider == ProviderOpenAI {
			cfg.LLM.Model = "gpt-4o-mini"
		} else {
			cfg.LLM.Model = "llama3.2:3b"
		}
	}

	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.ContextChars == 0 {
		cfg.RAG.ContextChars = 800
	}
	if cfg.RAG.WordsPerChunk == 0 {
		cfg.RAG.WordsPerChunk = 500
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendFile
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "faiss_index"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
}

func defaultBaseURL(provider string) string {
	if provider == ProviderOpenAI {
		return "https://api.openai.com/v1"
	}
	return "http://localhost:11434"
}

// applyEnv lets secrets and endpoints come from the environment instead of the file.
func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"RAG_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL},
		{"RAG_EMBEDDING_API_KEY", &cfg.Embedding.APIKey},
		{"RAG_LLM_BASE_URL", &cfg.LLM.BaseURL},
		{"RAG_LLM_API_KEY", &cfg.LLM.APIKey},
		{"RAG_LLM_MODEL", &cfg.LLM.Model},
		{"RAG_DATABASE_DSN", &cfg.Database.DSN},
		{"RAG_DATABASE_PASSWORD", &cfg.Database.Password},
		{"RAG_INDEX_ENCRYPTION_KEY", &cfg.Index.EncryptionKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) Validate() error {
	for _, p := range []string{c.Embedding.Provider, c.LLM.Provider} {
		if p != ProviderOllama && p != ProviderOpenAI {
			return fmt.Errorf("unsupported provider: %q", p)
		}
	}
	if c.Index.Backend != BackendFile && c.Index.Backend != BackendPostgres {
		return fmt.Errorf("unsupported index backend: %q", c.Index.Backend)
	}
	if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPq {
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.RAG.ContextChars < 1 {
		return fmt.Errorf("rag.context_chars must be positive, got %d", c.RAG.ContextChars)
	}
	if c.RAG.WordsPerChunk < 1 {
		return fmt.Errorf("rag.words_per_chunk must be positive, got %d", c.RAG.WordsPerChunk)
	}
	// chromem-go only accepts AES-256 keys
	if n := len(c.Index.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("index.encryption_key must be 32 bytes, got %d", n)
	}
	return nil
}
