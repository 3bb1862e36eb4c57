package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the study-notes assistant.
type Profile struct {
	// Generation model (OpenAI-compatible protocol)
	LLMProvider string // deepseek, openai, siliconflow, dashscope, openrouter, zai, ollama
	LLMAPIKey   string
	LLMBaseURL  string // optional, has default per provider
	LLMModel    string
	LLMTimeout  int // seconds

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Retrieval configuration
	RetrievalBackend  string // chromem, store
	RetrievalTopK     int
	RetrievalMinScore float64
	PromptTokenBudget int

	// Classifier configuration
	ClassifierConfigFile string // YAML watched for runtime changes
	PresetFile           string // extra presets
	Preset               string
	CacheSize            int
	CacheTTLSeconds      int

	// Server configuration
	ChatRateLimit float64 // requests per second
	ChatRateBurst int

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider defaults used when LLM base URL or model is not set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the generation model has an API key or runs locally.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads model, retrieval and classifier settings from STUDYNOTES_* variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("STUDYNOTES_LLM_PROVIDER", "deepseek")
	p.LLMAPIKey = getEnvOrDefault("STUDYNOTES_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("STUDYNOTES_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("STUDYNOTES_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("STUDYNOTES_LLM_TIMEOUT_SECONDS", 120)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: deepseek", "provider", p.LLMProvider)
		p.LLMProvider = "deepseek"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}

	p.EmbeddingProvider = getEnvOrDefault("STUDYNOTES_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingModel = getEnvOrDefault("STUDYNOTES_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.EmbeddingAPIKey = getEnvOrDefault("STUDYNOTES_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("STUDYNOTES_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingDimensions = getEnvOrDefaultInt("STUDYNOTES_EMBEDDING_DIMENSIONS", 1024)

	p.RetrievalBackend = getEnvOrDefault("STUDYNOTES_RETRIEVAL_BACKEND", "chromem")
	p.RetrievalTopK = getEnvOrDefaultInt("STUDYNOTES_RETRIEVAL_TOP_K", 5)
	p.RetrievalMinScore = getEnvOrDefaultFloat("STUDYNOTES_RETRIEVAL_MIN_SCORE", 0.3)
	p.PromptTokenBudget = getEnvOrDefaultInt("STUDYNOTES_PROMPT_TOKEN_BUDGET", 3000)

	p.ClassifierConfigFile = getEnvOrDefault("STUDYNOTES_CLASSIFIER_CONFIG", "")
	p.PresetFile = getEnvOrDefault("STUDYNOTES_PRESET_FILE", "")
	p.Preset = getEnvOrDefault("STUDYNOTES_PRESET", "balanced")
	p.CacheSize = getEnvOrDefaultInt("STUDYNOTES_CACHE_SIZE", 500)
	p.CacheTTLSeconds = getEnvOrDefaultInt("STUDYNOTES_CACHE_TTL_SECONDS", 300)

	p.ChatRateLimit = getEnvOrDefaultFloat("STUDYNOTES_CHAT_RATE_LIMIT", 5)
	p.ChatRateBurst = getEnvOrDefaultInt("STUDYNOTES_CHAT_RATE_BURST", 10)
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Data == "" {
		if p.Mode == "prod" {
			p.Data = "/var/opt/studynotes"
		} else {
			p.Data = "."
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "", "sqlite":
		p.Driver = "sqlite"
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("studynotes_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	switch p.RetrievalBackend {
	case "", "chromem":
		p.RetrievalBackend = "chromem"
	case "store":
	default:
		return errors.Errorf("unsupported retrieval backend %q", p.RetrievalBackend)
	}

	if p.RetrievalTopK <= 0 {
		p.RetrievalTopK = 5
	}
	if p.ChatRateLimit <= 0 {
		return errors.New("chat rate limit must be positive")
	}
	if p.ChatRateBurst <= 0 {
		p.ChatRateBurst = 1
	}
	return nil
}
