package ai

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/hrygo/studynotes/ai/core/llm"
	"github.com/hrygo/studynotes/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding  EmbeddingConfig
	LLM        llm.Config
	Retrieval  RetrievalConfig
	Classifier ClassifierConfig
	Enabled    bool
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// RetrievalConfig selects and tunes the note retriever.
type RetrievalConfig struct {
	Backend           string // chromem, store
	PersistPath       string // chromem persistence directory, empty for in-memory
	TopK              int
	MinScore          float64
	PromptTokenBudget int
}

// ClassifierConfig holds startup settings of the intent classifier.
type ClassifierConfig struct {
	Preset     string
	ConfigFile string
	PresetFile string
	CacheSize  int
	CacheTTL   time.Duration
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
		Classifier: ClassifierConfig{
			Preset:     p.Preset,
			ConfigFile: p.ClassifierConfigFile,
			PresetFile: p.PresetFile,
			CacheSize:  p.CacheSize,
			CacheTTL:   time.Duration(p.CacheTTLSeconds) * time.Second,
		},
		Retrieval: RetrievalConfig{
			Backend:           p.RetrievalBackend,
			TopK:              p.RetrievalTopK,
			MinScore:          p.RetrievalMinScore,
			PromptTokenBudget: p.PromptTokenBudget,
		},
		Embedding: EmbeddingConfig{
			Provider:   p.EmbeddingProvider,
			Model:      p.EmbeddingModel,
			APIKey:     p.EmbeddingAPIKey,
			BaseURL:    p.EmbeddingBaseURL,
			Dimensions: p.EmbeddingDimensions,
		},
		LLM: llm.Config{
			Provider:    p.LLMProvider,
			Model:       p.LLMModel,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     p.LLMTimeout,
		},
	}

	if cfg.Retrieval.Backend == "chromem" && p.Data != "" {
		cfg.Retrieval.PersistPath = filepath.Join(p.Data, "chromem")
	}
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval top-k must be positive")
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return errors.New("retrieval min score must be within [0, 1]")
	}

	if !c.Enabled {
		return nil
	}

	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	return nil
}
