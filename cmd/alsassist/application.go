package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/alsassist/ai/core/embedding"
	"github.com/hrygo/alsassist/ai/core/llm"
	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/ai/core/sentiment"
	"github.com/hrygo/alsassist/ai/emotion"
	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/metrics"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/orchestrator"
	"github.com/hrygo/alsassist/ai/proactive"
	"github.com/hrygo/alsassist/ai/prompt"
	"github.com/hrygo/alsassist/ai/recommend"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/ai/stage"
	"github.com/hrygo/alsassist/ai/summary"
	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/internal/profile"
	apiv1 "github.com/hrygo/alsassist/server/router/api/v1"
	"github.com/hrygo/alsassist/store"
	"github.com/hrygo/alsassist/store/db"
)

const (
	memorySessionCapacity = 10000
	queryCacheCapacity    = 256
	queryCacheTTL         = time.Hour
)

// application holds the wired collaborators of the server.
type application struct {
	api     *apiv1.APIV1Service
	metrics *metrics.PrometheusExporter
	closers []func() error
}

// newApplication builds every backend named by the profile. On failure the
// backends opened so far are closed.
func newApplication(ctx context.Context, p *profile.Profile) (_ *application, err error) {
	app := &application{metrics: metrics.NewPrometheusExporter(metrics.DefaultConfig())}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	lex, err := lexicon.Load(p.Locale, p.LexiconDir)
	if err != nil {
		return nil, errclass.Configuration("lexicon", err)
	}
	composer, err := prompt.NewComposer(p.PromptDir)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, p)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.Close)

	kv, err := newSessionKV(ctx, p)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(kv,
		session.WithTTL(p.SessionTTL),
		session.WithDegradedHook(app.metrics.RecordSessionDegraded),
	)
	// Sessions close before the store: closers run in order.
	app.closers = append([]func() error{sessions.Close}, app.closers...)

	generator, err := llm.NewService(&llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   p.LLMMaxTokens,
		Temperature: 0.7,
		Timeout:     p.LLMTimeout,
	})
	if err != nil {
		return nil, errclass.Configuration("llm", err)
	}
	go generator.Warmup(context.WithoutCancel(ctx))

	classifier := sentiment.NewService(&sentiment.Config{
		Model:   p.SentimentModel,
		APIKey:  p.SentimentAPIKey,
		BaseURL: p.SentimentBaseURL,
		Timeout: time.Duration(p.SentimentTimeout) * time.Second,
		Enabled: p.IsSentimentEnabled(),
	})

	var (
		rankerSearcher recommend.Searcher
		apiSearcher    apiv1.Searcher
	)
	if p.IsSearchEnabled() {
		embedder, err := newEmbedder(p)
		if err != nil {
			return nil, err
		}
		searcher := retrieval.NewSearcher(st, embedder, retrieval.WithQueryCache(queryCacheCapacity, queryCacheTTL))
		rankerSearcher, apiSearcher = searcher, searcher
	} else {
		slog.Info("Resource search disabled, recommendations use the catalog only")
	}

	estimator := stage.NewEstimator(healthMetricsSource(st), lex)
	needsClassifier := needs.NewClassifier(lex)
	ranker := recommend.NewRanker(lex, rankerSearcher,
		recommend.WithSearchTimeout(time.Duration(p.SearchTimeout)*time.Second),
		recommend.WithFailureHook(app.metrics.RecordSearchFailure),
	)

	orch := orchestrator.New(orchestrator.Deps{
		Sessions:      sessions,
		Emotion:       emotion.NewDetector(classifier, lex),
		Stage:         estimator,
		Needs:         needsClassifier,
		Recommender:   ranker,
		Prompt:        composer,
		Gate:          proactive.NewGate(lex),
		LLM:           generator,
		Recorder:      app.metrics,
		PositiveWords: lex.Emotion.Positive,
	}, orchestrator.Config{
		Model:             p.LLMModel,
		GenerationTimeout: time.Duration(p.LLMTimeout) * time.Second,
		MaxTokens:         p.LLMMaxTokens,
	})

	app.api = &apiv1.APIV1Service{
		Turns:      orch,
		Sessions:   sessions,
		Searcher:   apiSearcher,
		Archive:    st,
		Stage:      estimator,
		Needs:      needsClassifier,
		Summarizer: summary.New(generator),
		RateLimit:  p.RateLimit,
	}
	return app, nil
}

func (a *application) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			slog.Error("failed to close backend", "error", err)
		}
	}
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errclass.Configuration("store", err)
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, errclass.Configuration("store", err)
	}
	return st, nil
}

func newSessionKV(ctx context.Context, p *profile.Profile) (session.KV, error) {
	if p.RedisURL == "" {
		return session.NewMemoryKV(memorySessionCapacity, p.SessionTTL), nil
	}
	kv, err := session.NewRedisKV(ctx, p.RedisURL)
	if err != nil {
		return nil, errclass.Configuration("session", err)
	}
	return kv, nil
}

func newEmbedder(p *profile.Profile) (embedding.Service, error) {
	embedder, err := embedding.NewService(&embedding.Config{
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	})
	if err != nil {
		return nil, errclass.Configuration("embedding", err)
	}
	return embedder, nil
}

// healthMetricsReader is the store surface the stage estimator reads.
type healthMetricsReader interface {
	GetLatestHealthMetrics(ctx context.Context, userID string) (*store.HealthMetrics, error)
}

// healthMetricsSource adapts the health_metrics table to the estimator. A
// user without assessments yields nil, which the estimator treats as
// defaults.
func healthMetricsSource(st healthMetricsReader) stage.MetricsSource {
	return stage.SourceFunc(func(ctx context.Context, userID string) (*stage.Metrics, error) {
		hm, err := st.GetLatestHealthMetrics(ctx, userID)
		if err != nil || hm == nil {
			return nil, err
		}
		return &stage.Metrics{
			Mobility:            hm.Mobility,
			SpeechClarity:       hm.SpeechClarity,
			BreathingDifficulty: hm.BreathingDifficulty,
			DailyActivityScore:  hm.DailyActivityScore,
			DaysSinceDiagnosis:  hm.DaysSinceDiagnosis,
		}, nil
	})
}
