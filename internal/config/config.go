// Package config holds drdoc configuration, loaded from a YAML file
// with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"drdoc/internal/logging"
)

// Config holds all drdoc configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM answer synthesis
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Symbolic fact store
	Symbolic SymbolicConfig `yaml:"symbolic"`

	// SQLite vector store
	Store StoreConfig `yaml:"store"`

	// Hybrid router
	Router RouterConfig `yaml:"router"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Document ingestion
	Ingest IngestConfig `yaml:"ingest"`

	// Logging
	Logging logging.Settings `yaml:"logging"`
}

// LLMConfig configures the chat completion model used to synthesize
// narrative answers from retrieved context.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, openai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIModel    string `yaml:"openai_model"`
}

// SymbolicConfig configures the Mangle fact store.
type SymbolicConfig struct {
	Enabled      bool   `yaml:"enabled"`
	SchemaPath   string `yaml:"schema_path"` // empty = built-in schema
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
}

// StoreConfig configures the SQLite chunk store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RouterConfig configures the hybrid router and composer.
type RouterConfig struct {
	// Default confidence assigned to semantic results (the retriever
	// does not natively report one).
	SemanticConfidence float64 `yaml:"semantic_confidence"`

	// Symbolic confidence threshold above which symbolic output leads.
	SymbolicThreshold float64 `yaml:"symbolic_threshold"`

	// Minimum semantic answer length to include as additional context.
	MinContextChars int `yaml:"min_context_chars"`

	// Citation caps.
	MaxSemanticCitations int `yaml:"max_semantic_citations"`
	MaxAtomCitations     int `yaml:"max_atom_citations"`

	// Run both hybrid retrievals concurrently.
	Parallel bool `yaml:"parallel"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	DocsDir      string `yaml:"docs_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Watch        bool   `yaml:"watch"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "drdoc",
		Version: "1.0.0",

		LLM: LLMConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
			Timeout: "60s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			OpenAIModel:    "text-embedding-3-small",
		},

		Symbolic: SymbolicConfig{
			Enabled:      true,
			FactLimit:    100000,
			QueryTimeout: "30s",
		},

		Store: StoreConfig{
			DatabasePath: "data/drdoc.db",
		},

		Router: RouterConfig{
			SemanticConfidence:   0.8,
			SymbolicThreshold:    0.5,
			MinContextChars:      100,
			MaxSemanticCitations: 5,
			MaxAtomCitations:     3,
			Parallel:             true,
		},

		Server: ServerConfig{
			Addr: ":5003",
		},

		Ingest: IngestConfig{
			DocsDir:      "docs",
			ChunkSize:    1500,
			ChunkOverlap: 200,
		},

		Logging: logging.Settings{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering file values over
// defaults and environment overrides over both. A missing file is not
// an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides pulls secrets and common toggles from the
// environment. Environment always wins over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		c.Embedding.OpenAIAPIKey = v
	}
	if v := os.Getenv("DRDOC_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DRDOC_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("DRDOC_DOCS_DIR"); v != "" {
		c.Ingest.DocsDir = v
	}
	if v := os.Getenv("ENABLE_SYMBOLIC"); v != "" {
		c.Symbolic.Enabled = isTruthy(v)
	}
	if v := os.Getenv("DRDOC_DEBUG"); v != "" {
		c.Logging.DebugMode = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Router.SemanticConfidence < 0 || c.Router.SemanticConfidence > 1 {
		return fmt.Errorf("router.semantic_confidence must be in [0,1], got %v", c.Router.SemanticConfidence)
	}
	if c.Router.SymbolicThreshold < 0 || c.Router.SymbolicThreshold > 1 {
		return fmt.Errorf("router.symbolic_threshold must be in [0,1], got %v", c.Router.SymbolicThreshold)
	}
	if c.Router.MaxSemanticCitations <= 0 {
		return fmt.Errorf("router.max_semantic_citations must be positive")
	}
	if c.Router.MaxAtomCitations <= 0 {
		return fmt.Errorf("router.max_atom_citations must be positive")
	}
	if c.Ingest.ChunkSize > 0 && c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than chunk_size")
	}
	return nil
}

// EnsureStoreDir creates the parent directory of the database path.
func (c *Config) EnsureStoreDir() error {
	dir := filepath.Dir(c.Store.DatabasePath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
