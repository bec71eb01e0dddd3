package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/alsassist/ai/stage"
	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/internal/profile"
	"github.com/hrygo/alsassist/server"
	"github.com/hrygo/alsassist/store"
)

type stubMetrics struct {
	hm  *store.HealthMetrics
	err error
}

func (s stubMetrics) GetLatestHealthMetrics(context.Context, string) (*store.HealthMetrics, error) {
	return s.hm, s.err
}

func TestHealthMetricsSource(t *testing.T) {
	ctx := context.Background()

	t.Run("maps latest assessment", func(t *testing.T) {
		src := healthMetricsSource(stubMetrics{hm: &store.HealthMetrics{
			Mobility: 0.9, SpeechClarity: 0.9, BreathingDifficulty: 0.1, DailyActivityScore: 0.9, DaysSinceDiagnosis: 30,
		}})
		m, err := src.FetchHealthMetrics(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, stage.Metrics{Mobility: 0.9, SpeechClarity: 0.9, BreathingDifficulty: 0.1, DailyActivityScore: 0.9, DaysSinceDiagnosis: 30}, *m)
	})

	t.Run("no assessment", func(t *testing.T) {
		m, err := healthMetricsSource(stubMetrics{}).FetchHealthMetrics(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := healthMetricsSource(stubMetrics{err: errors.New("db down")}).FetchHealthMetrics(ctx, "u1")
		assert.Error(t, err)
	})
}

func TestHealthMetricsFromFlags(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().AddFlagSet(recordMetricsCmd.Flags())
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}

	hm, err := healthMetricsFromFlags(newCmd("--user", "u1", "--mobility", "0.4", "--speech", "0.6", "--days", "200"))
	require.NoError(t, err)
	assert.Equal(t, "u1", hm.UserID)
	assert.InDelta(t, 0.4, hm.Mobility, 1e-9)
	assert.InDelta(t, 0.6, hm.SpeechClarity, 1e-9)
	assert.Equal(t, 200, hm.DaysSinceDiagnosis)

	_, err = healthMetricsFromFlags(newCmd("--mobility", "0.4"))
	assert.True(t, errclass.IsValidation(err))
}

func TestNewApplication_ServesChat(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"test","choices":[{"index":0,"message":{"role":"assistant","content":"I hear you."},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	}))
	defer llmServer.Close()

	p := &profile.Profile{
		Mode:          "dev",
		Driver:        "sqlite",
		DSN:           filepath.Join(t.TempDir(), "app.db"),
		LLMProvider:   "openai",
		LLMAPIKey:     "test",
		LLMBaseURL:    llmServer.URL,
		LLMModel:      "test",
		LLMMaxTokens:  64,
		LLMTimeout:    5,
		Locale:        "en",
		SearchTimeout: 1,
	}

	ctx := context.Background()
	app, err := newApplication(ctx, p)
	require.NoError(t, err)

	s, err := server.NewServer(ctx, p, app.api, app.metrics.Handler(), app.closers...)
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"I feel tired today","session_id":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "I hear you.")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alsassist_turns_total")
}

func TestNewApplication_BadLocale(t *testing.T) {
	_, err := newApplication(context.Background(), &profile.Profile{Locale: "xx", Driver: "sqlite"})
	require.Error(t, err)
	assert.Equal(t, errclass.ClassConfiguration, errclass.Classify(err))
}
