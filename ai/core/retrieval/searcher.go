// Package retrieval is the similarity search over the support resource
// library: queries are embedded and matched against stored resource vectors.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/alsassist/ai/cache"
	"github.com/hrygo/alsassist/ai/core/embedding"
	"github.com/hrygo/alsassist/ai/internal/strutil"
	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/store"
)

const (
	// DefaultTopK is used when a caller asks for zero results.
	DefaultTopK = 5
	// MaxQueryLength bounds the query size in runes.
	MaxQueryLength = 1000
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// VectorStore is the slice of store.Store the search layer needs.
type VectorStore interface {
	SearchResources(ctx context.Context, opts *store.ResourceSearchOptions) ([]*store.ResourceWithDistance, error)
	UpsertResource(ctx context.Context, resource *store.Resource) (*store.Resource, error)
}

// Hit is one search result. Score is a similarity in (0,1], higher is closer.
type Hit struct {
	Metadata map[string]string `json:"metadata"`
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
}

// Title returns the "title" metadata entry, or fallback.
func (h Hit) Title(fallback string) string {
	if t := strings.TrimSpace(h.Metadata["title"]); t != "" {
		return t
	}
	return fallback
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithQueryCache keeps up to capacity query vectors for ttl. Recommendation
// queries repeat per need and stage, so most turns skip the embedding call.
func WithQueryCache(capacity int, ttl time.Duration) Option {
	return func(s *Searcher) {
		if capacity > 0 {
			s.vectors = cache.NewLRUCache[string, []float32](capacity, ttl)
		}
	}
}

// Searcher embeds queries and looks them up in the vector store.
type Searcher struct {
	store    VectorStore
	embedder embedding.Service
	vectors  *cache.LRUCache[string, []float32]
}

// NewSearcher creates a Searcher.
func NewSearcher(st VectorStore, embedder embedding.Service, opts ...Option) *Searcher {
	s := &Searcher{store: st, embedder: embedder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to topK resources closest to query, best first. Filters
// match metadata entries exactly.
func (s *Searcher) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return nil, errclass.Validation("query too long: %d characters (max %d)", n, MaxQueryLength)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.store.SearchResources(ctx, &store.ResourceSearchOptions{
		Filters: filters,
		Model:   s.embedder.Model(),
		Vector:  vector,
		Limit:   topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r == nil || r.Resource == nil {
			continue
		}
		hits = append(hits, Hit{
			ID:       r.Resource.ID,
			Content:  r.Resource.Content,
			Metadata: r.Resource.Metadata,
			Score:    Similarity(r.Distance),
		})
	}

	slog.DebugContext(ctx, "Similarity search completed",
		"query", strutil.Preview(query, 60),
		"top_k", topK,
		"result_count", len(hits),
	)
	return hits, nil
}

func (s *Searcher) embed(ctx context.Context, query string) ([]float32, error) {
	if s.vectors != nil {
		if v, ok := s.vectors.Get(query); ok {
			return v, nil
		}
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if s.vectors != nil {
		s.vectors.Set(query, vector, 0)
	}
	return vector, nil
}

// Similarity maps a non-negative distance to (0,1] as 1/(1+d).
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
