package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AIConfig holds model endpoints and identifiers.
type AIConfig struct {
	LLMHost        string `yaml:"llm_host"`
	EmbeddingHost  string `yaml:"embedding_host"`
	RerankHost     string `yaml:"rerank_host,omitempty"`
	LLMModel       string `yaml:"llm_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	RerankModel    string `yaml:"rerank_model,omitempty"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	// IndexPath is the badger directory holding chunks and the lexicon.
	IndexPath string `yaml:"index_path"`
	// CachePath is the sqlite file holding the answer cache.
	CachePath string `yaml:"cache_path"`
}

// ChunkingConfig configures how documents split into chunks.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig configures the hybrid search stage.
type RetrievalConfig struct {
	// HybridAlpha blends dense against lexical scores (1 = dense only).
	HybridAlpha  float64 `yaml:"hybrid_alpha"`
	TopKRetrieve int     `yaml:"top_k_retrieve"`
	TopKFinal    int     `yaml:"top_k_final"`
	// SlowRerank routes the rerank stage through the pairwise scorer.
	SlowRerank bool `yaml:"slow_rerank,omitempty"`
}

// CacheConfig configures the semantic answer cache.
type CacheConfig struct {
	// Disabled turns the cache off entirely.
	Disabled   bool    `yaml:"disabled,omitempty"`
	Threshold  float64 `yaml:"threshold"`
	TTLHours   int     `yaml:"ttl_hours"`
	MaxEntries int     `yaml:"max_entries"`
	ScanLimit  int     `yaml:"scan_limit"`
}

// TTL returns the entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	MaxExecutionSecs int `yaml:"max_execution_secs"`
}

// MaxExecution returns the wall-clock budget as a duration.
func (a AgentConfig) MaxExecution() time.Duration {
	return time.Duration(a.MaxExecutionSecs) * time.Second
}

// Config is the root application configuration.
type Config struct {
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Agent     AgentConfig     `yaml:"agent"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the built-in configuration: a local Ollama-style
// endpoint, on-disk storage under ./data, and the standard tuning.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			LLMHost:        "http://localhost:11434/v1",
			EmbeddingHost:  "http://localhost:11434/v1",
			LLMModel:       "qwen2.5:7b",
			EmbeddingModel: "embeddinggemma",
		},
		Storage: StorageConfig{
			IndexPath: filepath.Join("data", "index"),
			CachePath: filepath.Join("data", "cache.db"),
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 50,
		},
		Retrieval: RetrievalConfig{
			HybridAlpha:  0.7,
			TopKRetrieve: 10,
			TopKFinal:    3,
		},
		Cache: CacheConfig{
			Threshold:  0.88,
			TTLHours:   24,
			MaxEntries: 1000,
			ScanLimit:  100,
		},
		Agent: AgentConfig{
			MaxIterations:    5,
			MaxExecutionSecs: 30,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path, then applies environment
// overrides. A missing file yields the defaults; a present but broken
// file is an error.
//
// The file is unmarshaled over the defaults, so keys absent from the
// YAML keep their default values while explicit values, including
// explicit zeros, are preserved.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv lets environment variables override file values, keeping
// the variable names the deployment scripts already use.
func applyEnv(cfg *Config) error {
	setString(&cfg.AI.LLMHost, "LLM_HOST")
	setString(&cfg.AI.EmbeddingHost, "EMBEDDING_HOST")
	setString(&cfg.AI.RerankHost, "RERANK_HOST")
	setString(&cfg.AI.LLMModel, "LLM_MODEL")
	setString(&cfg.AI.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if err := setInt(&cfg.Chunking.Size, "CHUNK_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Chunking.Overlap, "CHUNK_OVERLAP"); err != nil {
		return err
	}
	if err := setFloat(&cfg.Retrieval.HybridAlpha, "HYBRID_ALPHA"); err != nil {
		return err
	}
	if err := setInt(&cfg.Retrieval.TopKRetrieve, "TOP_K_RETRIEVE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Retrieval.TopKFinal, "TOP_K_FINAL"); err != nil {
		return err
	}
	if err := setInt(&cfg.Agent.MaxIterations, "AGENT_MAX_ITERATIONS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Agent.MaxExecutionSecs, "AGENT_MAX_EXECUTION_TIME"); err != nil {
		return err
	}
	return nil
}

func setString(dest *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dest = v
	}
}

func setInt(dest *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	*dest = n
	return nil
}

func setFloat(dest *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	*dest = f
	return nil
}
