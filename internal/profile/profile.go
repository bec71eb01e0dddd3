package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/internal/errclass"
)

// Profile is configuration to start the companion server.
type Profile struct {
	// Generation backend (OpenAI-compatible protocol).
	LLMProvider  string // openai, deepseek, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	LLMMaxTokens int // default: 512
	LLMTimeout   int // seconds, default: 30

	// Embedding backend used by similarity search.
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Statistical sentiment classifier (Hugging Face style inference API).
	SentimentModel   string
	SentimentAPIKey  string
	SentimentBaseURL string
	SentimentTimeout int // seconds, default: 10

	// Session cache. Empty RedisURL means the in-process cache is used.
	RedisURL   string
	SessionTTL time.Duration

	// Conversation pipeline.
	Locale        string // en, zh
	LexiconDir    string // optional directory of <locale>.yaml overrides
	PromptDir     string // optional override of the built-in prompt templates
	SearchTimeout int    // seconds, default: 5
	RateLimit     float64

	Mode     string
	Addr     string
	Port     int
	Data     string
	Driver   string
	DSN      string
	Version  string
	LogLevel string
}

// Provider default configurations for the generation backend.
// Used when ALSASSIST_LLM_BASE_URL or ALSASSIST_LLM_MODEL are not set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
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
		Model:   "ibm-granite/granite-3.3-8b-instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsSearchEnabled returns true if the embedding backend is configured.
func (p *Profile) IsSearchEnabled() bool {
	return p.EmbeddingAPIKey != ""
}

// IsSentimentEnabled returns true if the sentiment classifier is configured.
func (p *Profile) IsSentimentEnabled() bool {
	return p.SentimentAPIKey != ""
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

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("ALSASSIST_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("ALSASSIST_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("ALSASSIST_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("ALSASSIST_LLM_MODEL", "")
	p.LLMMaxTokens = getEnvOrDefaultInt("ALSASSIST_LLM_MAX_TOKENS", 512)
	p.LLMTimeout = getEnvOrDefaultInt("ALSASSIST_LLM_TIMEOUT_SECONDS", 30)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}

	p.EmbeddingModel = getEnvOrDefault("ALSASSIST_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.EmbeddingAPIKey = getEnvOrDefault("ALSASSIST_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("ALSASSIST_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingDimensions = getEnvOrDefaultInt("ALSASSIST_EMBEDDING_DIMENSIONS", 1024)

	p.SentimentModel = getEnvOrDefault("ALSASSIST_SENTIMENT_MODEL", "cardiffnlp/twitter-roberta-base-sentiment-latest")
	p.SentimentAPIKey = getEnvOrDefault("ALSASSIST_SENTIMENT_API_KEY", "")
	p.SentimentBaseURL = getEnvOrDefault("ALSASSIST_SENTIMENT_BASE_URL", "https://api-inference.huggingface.co/models")
	p.SentimentTimeout = getEnvOrDefaultInt("ALSASSIST_SENTIMENT_TIMEOUT_SECONDS", 10)

	p.RedisURL = getEnvOrDefault("ALSASSIST_REDIS_URL", "")
	p.SessionTTL = time.Duration(getEnvOrDefaultInt("ALSASSIST_SESSION_TTL_SECONDS", 86400)) * time.Second

	p.Locale = getEnvOrDefault("ALSASSIST_LOCALE", "en")
	p.LexiconDir = getEnvOrDefault("ALSASSIST_LEXICON_DIR", "")
	p.PromptDir = getEnvOrDefault("ALSASSIST_PROMPT_DIR", "")
	p.SearchTimeout = getEnvOrDefaultInt("ALSASSIST_SEARCH_TIMEOUT_SECONDS", 5)
	p.RateLimit = getEnvOrDefaultFloat("ALSASSIST_RATE_LIMIT", 5)
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
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

// Validate normalizes the profile and reports missing required settings as
// configuration errors.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.LLMAPIKey == "" && p.LLMProvider != "ollama" {
		return errclass.MissingConfig("llm", "ALSASSIST_LLM_API_KEY")
	}
	if p.Locale != "en" && p.Locale != "zh" {
		return errclass.Configuration("lexicon", fmt.Errorf("unsupported locale %q", p.Locale))
	}

	switch p.Driver {
	case "postgres":
		if p.DSN == "" {
			return errclass.MissingConfig("store", "dsn")
		}
	case "sqlite":
		if p.DSN == "" {
			if p.Data == "" {
				p.Data = "."
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
				return errclass.Configuration("store", err)
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("alsassist_%s.db", p.Mode))
		}
	default:
		return errclass.Configuration("store", fmt.Errorf("unsupported driver %q", p.Driver))
	}

	return nil
}
