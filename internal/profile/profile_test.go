package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/alsassist/internal/errclass"
)

var profileEnvVars = []string{
	"ALSASSIST_LLM_PROVIDER",
	"ALSASSIST_LLM_API_KEY",
	"ALSASSIST_LLM_BASE_URL",
	"ALSASSIST_LLM_MODEL",
	"ALSASSIST_LLM_MAX_TOKENS",
	"ALSASSIST_EMBEDDING_API_KEY",
	"ALSASSIST_SENTIMENT_API_KEY",
	"ALSASSIST_REDIS_URL",
	"ALSASSIST_SESSION_TTL_SECONDS",
	"ALSASSIST_LOCALE",
	"ALSASSIST_RATE_LIMIT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range profileEnvVars {
		t.Setenv(key, "")
	}
}

func TestProfileDefaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-4o-mini", p.LLMModel)
	assert.Equal(t, 512, p.LLMMaxTokens)
	assert.Equal(t, 30, p.LLMTimeout)
	assert.Equal(t, "BAAI/bge-m3", p.EmbeddingModel)
	assert.Equal(t, "cardiffnlp/twitter-roberta-base-sentiment-latest", p.SentimentModel)
	assert.Equal(t, 24*time.Hour, p.SessionTTL)
	assert.Equal(t, "en", p.Locale)
	assert.Equal(t, 5, p.SearchTimeout)
	assert.InDelta(t, 5.0, p.RateLimit, 1e-9)
	assert.False(t, p.IsSearchEnabled())
	assert.False(t, p.IsSentimentEnabled())
}

func TestProfileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALSASSIST_LLM_PROVIDER", "deepseek")
	t.Setenv("ALSASSIST_LLM_API_KEY", "sk-test")
	t.Setenv("ALSASSIST_EMBEDDING_API_KEY", "emb-key")
	t.Setenv("ALSASSIST_SESSION_TTL_SECONDS", "60")
	t.Setenv("ALSASSIST_LOCALE", "zh")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, "sk-test", p.LLMAPIKey)
	assert.Equal(t, time.Minute, p.SessionTTL)
	assert.Equal(t, "zh", p.Locale)
	assert.True(t, p.IsSearchEnabled())
}

func TestProfileFromEnv_UnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALSASSIST_LLM_PROVIDER", "watsonx")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
}

func TestProfileValidate(t *testing.T) {
	t.Run("missing LLM key is a configuration error", func(t *testing.T) {
		p := &Profile{LLMProvider: "openai", Locale: "en", Driver: "postgres", DSN: "postgres://x"}
		err := p.Validate()
		require.Error(t, err)
		assert.Equal(t, errclass.ClassConfiguration, errclass.Classify(err))
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		p := &Profile{LLMProvider: "ollama", Locale: "en", Driver: "postgres", DSN: "postgres://x"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
	})

	t.Run("unsupported locale", func(t *testing.T) {
		p := &Profile{LLMAPIKey: "k", Locale: "fr", Driver: "postgres", DSN: "postgres://x"}
		assert.Error(t, p.Validate())
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{LLMAPIKey: "k", Locale: "en", Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("sqlite derives dsn from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{LLMAPIKey: "k", Locale: "en", Driver: "sqlite", Data: dir, Mode: "prod"}
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "alsassist_prod.db")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{LLMAPIKey: "k", Locale: "en", Driver: "mysql"}
		assert.Error(t, p.Validate())
	})
}
