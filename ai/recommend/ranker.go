// Package recommend turns detected needs into a short, deduplicated list of
// support recommendations drawn from the static catalog and from similarity
// search over the resource library.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/ai/internal/strutil"
	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/stage"
)

// Source tells where a recommendation came from.
type Source string

const (
	SourceRule     Source = "rule"
	SourceSemantic Source = "semantic"
)

const (
	// DefaultSearchTimeout bounds one similarity lookup.
	DefaultSearchTimeout = 5 * time.Second

	maxNeeds        = 2
	perNeed         = 2
	searchTopK      = 3
	maxContentRunes = 200

	semanticType     = "resource"
	semanticFallback = "Related resource"
)

// Stage adjustments to catalog priorities.
const (
	exerciseType        = "exercise"
	educationType       = "education"
	lateStageExercise   = 0.5
	earlyStageEducation = 1.3
)

// Recommendation is one suggested support item.
type Recommendation struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Source   Source  `json:"source"`
	Content  string  `json:"content,omitempty"`
	Priority float64 `json:"priority"`
}

// Searcher is the similarity search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]retrieval.Hit, error)
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithSearchTimeout overrides DefaultSearchTimeout.
func WithSearchTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.searchTimeout = d
		}
	}
}

// WithFailureHook registers fn to be called on every failed search.
func WithFailureHook(fn func()) Option {
	return func(r *Ranker) {
		r.onSearchFailure = fn
	}
}

// Ranker merges catalog rules with search results.
type Ranker struct {
	lex             *lexicon.Lexicon
	searcher        Searcher
	onSearchFailure func()
	searchTimeout   time.Duration
}

// NewRanker creates a Ranker. A nil searcher yields catalog rules only.
func NewRanker(lex *lexicon.Lexicon, searcher Searcher, opts ...Option) *Ranker {
	r := &Ranker{lex: lex, searcher: searcher, searchTimeout: DefaultSearchTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate returns recommendations for the two strongest needs. Per need the
// two highest-priority items are kept; the concatenation is then deduplicated
// on (Type, Name), keeping the first occurrence. A failed search degrades that
// need to catalog rules.
func (r *Ranker) Generate(ctx context.Context, detected []needs.Candidate, st stage.Stage) []Recommendation {
	if len(detected) > maxNeeds {
		detected = detected[:maxNeeds]
	}

	var merged []Recommendation
	for _, need := range detected {
		items := r.catalogRules(need.Type, st)
		items = append(items, r.semantic(ctx, need.Type, st)...)

		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Priority > items[j].Priority
		})
		if len(items) > perNeed {
			items = items[:perNeed]
		}
		merged = append(merged, items...)
	}
	return Dedupe(merged)
}

func (r *Ranker) catalogRules(needType string, st stage.Stage) []Recommendation {
	entries := r.lex.Catalog[needType]
	out := make([]Recommendation, 0, len(entries))
	for _, e := range entries {
		out = append(out, Recommendation{
			Type:     e.Type,
			Name:     e.Name,
			Source:   SourceRule,
			Priority: AdjustPriority(e.Type, e.Priority, st),
		})
	}
	return out
}

// AdjustPriority applies the stage rules: exercise is halved from the
// advanced stage on, education is boosted in the early stage.
func AdjustPriority(itemType string, priority float64, st stage.Stage) float64 {
	switch {
	case itemType == exerciseType && (st == stage.Advanced || st == stage.Terminal):
		return priority * lateStageExercise
	case itemType == educationType && st == stage.Early:
		return priority * earlyStageEducation
	}
	return priority
}

func (r *Ranker) semantic(ctx context.Context, needType string, st stage.Stage) []Recommendation {
	if r.searcher == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()

	hits, err := r.searcher.Search(ctx, fmt.Sprintf("%s %s support", needType, st), searchTopK, nil)
	if err != nil {
		slog.WarnContext(ctx, "Resource search failed, using catalog rules only",
			"need", needType,
			"stage", string(st),
			"error", err,
		)
		if r.onSearchFailure != nil {
			r.onSearchFailure()
		}
		return nil
	}

	out := make([]Recommendation, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Recommendation{
			Type:     semanticType,
			Name:     hit.Title(semanticFallback),
			Source:   SourceSemantic,
			Priority: hit.Score,
			Content:  strutil.Runes(hit.Content, maxContentRunes),
		})
	}
	return out
}

// Dedupe drops later items whose (Type, Name) was already seen.
func Dedupe(items []Recommendation) []Recommendation {
	type key struct{ typ, name string }
	seen := make(map[key]struct{}, len(items))
	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		k := key{item.Type, item.Name}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
