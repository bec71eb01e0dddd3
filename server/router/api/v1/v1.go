// Package v1 is the JSON API of the companion service.
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/orchestrator"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/ai/stage"
	"github.com/hrygo/alsassist/ai/summary"
	"github.com/hrygo/alsassist/store"
)

// FailureDetail is the only error text an unanticipated fault exposes.
const FailureDetail = "Chat processing failed. Please try again later."

// TurnProcessor runs conversation turns.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error)
}

// SessionStore is the session surface the API exposes.
type SessionStore interface {
	Export(ctx context.Context, id string) session.Snapshot
	ExportErr(ctx context.Context, id string) (session.Snapshot, error)
	Clear(ctx context.Context, id string) error
}

// Searcher is the similarity search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]retrieval.Hit, error)
}

// Archive is the durable conversation store.
type Archive interface {
	AppendConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
	SetFeedback(ctx context.Context, id string, rating int) error
	Ping(ctx context.Context) error
}

// StageEstimator estimates the stage attached to archived conversations.
type StageEstimator interface {
	Estimate(ctx context.Context, userID string) *stage.Signal
}

// NeedsAnalyzer detects the needs attached to archived conversations.
type NeedsAnalyzer interface {
	Analyze(text string, st stage.Stage) []needs.Candidate
}

// Summarizer writes the summary of an archived conversation when the client
// supplies none.
type Summarizer interface {
	Summarize(ctx context.Context, messages []session.Message) summary.Result
}

// APIV1Service holds the handlers. Searcher, Archive and Summarizer may be nil
// when the corresponding backend is not configured.
type APIV1Service struct {
	Turns      TurnProcessor
	Sessions   SessionStore
	Searcher   Searcher
	Archive    Archive
	Stage      StageEstimator
	Needs      NeedsAnalyzer
	Summarizer Summarizer

	// RateLimit is the sustained requests per second allowed per client on
	// /api routes; zero disables limiting.
	RateLimit float64
}

// RegisterRoutes mounts the API on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")
	if s.RateLimit > 0 {
		api.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.RateLimit),
				Burst:     max(1, int(s.RateLimit*2)),
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
		}))
	}

	api.POST("/chat", s.Chat)
	api.POST("/search", s.Search)
	api.POST("/feedback", s.Feedback)
	api.GET("/sessions/:id", s.GetSession)
	api.DELETE("/sessions/:id", s.ClearSession)
	api.POST("/sessions/:id/archive", s.ArchiveSession)

	e.GET("/healthz", s.Health)
}

// Health reports liveness and, when an archive is configured, its reachability.
func (s *APIV1Service) Health(c echo.Context) error {
	if s.Archive != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.Archive.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "component", "database", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
