package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/internal/errclass"
)

const (
	defaultSearchTopK = 5
	maxSearchTopK     = 50
	searchTimeout     = 10 * time.Second
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Filters map[string]string `json:"filters,omitempty"`
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Metadata map[string]string `json:"metadata"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
}

// SearchResponse is the reply to a search request.
type SearchResponse struct {
	QueryID string         `json:"query_id"`
	Results []SearchResult `json:"results"`
}

// Search runs a similarity search over the resource library.
func (s *APIV1Service) Search(c echo.Context) error {
	if s.Searcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.TopK <= 0 {
		req.TopK = defaultSearchTopK
	}
	if req.TopK > maxSearchTopK {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), searchTimeout)
	defer cancel()

	hits, err := s.Searcher.Search(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) || errclass.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		slog.Error("Search failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "search failed")
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		metadata := h.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		results = append(results, SearchResult{Content: h.Content, Score: h.Score, Metadata: metadata})
	}
	return c.JSON(http.StatusOK, SearchResponse{QueryID: uuid.NewString(), Results: results})
}
