package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/stage"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]retrieval.Hit, error) {
	args := m.Called(query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Hit), args.Error(1)
}

func TestAdjustPriority(t *testing.T) {
	tests := []struct {
		name     string
		itemType string
		stage    stage.Stage
		expected float64
	}{
		{"exercise early", "exercise", stage.Early, 1},
		{"exercise advanced", "exercise", stage.Advanced, 0.5},
		{"exercise terminal", "exercise", stage.Terminal, 0.5},
		{"education early", "education", stage.Early, 1.3},
		{"education middle", "education", stage.Middle, 1},
		{"therapy advanced", "therapy", stage.Advanced, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AdjustPriority(tt.itemType, 1, tt.stage), 1e-9)
		})
	}
}

func TestGenerate_CatalogOnly(t *testing.T) {
	r := NewRanker(lexicon.Default(), nil)
	got := r.Generate(context.Background(), []needs.Candidate{
		{Type: "physical", Confidence: 0.96},
		{Type: "emotional", Confidence: 0.8},
		{Type: "social", Confidence: 0.5},
	}, stage.Middle)

	require.Len(t, got, 4)
	assert.Equal(t, "Physical therapy", got[0].Name)
	assert.Equal(t, "Assistive device recommendations", got[1].Name)
	assert.Equal(t, "Peer support groups", got[2].Name)
	assert.Equal(t, "Meditation practice", got[3].Name)
	for _, rec := range got {
		assert.Equal(t, SourceRule, rec.Source)
	}
}

func TestGenerate_EarlyEducationBoost(t *testing.T) {
	lex := &lexicon.Lexicon{Catalog: map[string][]lexicon.CatalogEntry{
		"information": {
			{Type: "education", Name: "Materials", Priority: 1},
			{Type: "research", Name: "Research", Priority: 1.2},
			{Type: "guide", Name: "Guides", Priority: 0.5},
		},
	}}
	got := NewRanker(lex, nil).Generate(context.Background(), []needs.Candidate{{Type: "information"}}, stage.Early)

	require.Len(t, got, 2)
	assert.Equal(t, "Materials", got[0].Name)
	assert.InDelta(t, 1.3, got[0].Priority, 1e-9)
	assert.Equal(t, "Research", got[1].Name)
}

func TestGenerate_MergesSemanticHits(t *testing.T) {
	lex := &lexicon.Lexicon{Catalog: map[string][]lexicon.CatalogEntry{
		"physical":  {{Type: "exercise", Name: "Breathing exercises", Priority: 1}},
		"emotional": {{Type: "therapy", Name: "Counseling", Priority: 0.2}},
	}}
	long := strings.Repeat("é", 250)

	s := &MockSearcher{}
	s.On("Search", "physical advanced support", 3).Return([]retrieval.Hit{
		{Content: long, Score: 0.9, Metadata: map[string]string{"title": "Home ventilation"}},
		{Content: "x", Score: 0.4},
	}, nil)
	s.On("Search", "emotional advanced support", 3).Return([]retrieval.Hit{
		{Content: "y", Score: 0.7, Metadata: map[string]string{"title": "Home ventilation"}},
		{Content: "z", Score: 0.6},
	}, nil)

	got := NewRanker(lex, s).Generate(context.Background(), []needs.Candidate{
		{Type: "physical"}, {Type: "emotional"},
	}, stage.Advanced)

	// physical: Home ventilation 0.9, exercise 0.5 (halved), x 0.4
	// emotional: Home ventilation 0.7 (duplicate), Related resource 0.6
	require.Len(t, got, 3)
	assert.Equal(t, Recommendation{Type: "resource", Name: "Home ventilation", Source: SourceSemantic, Priority: 0.9, Content: strings.Repeat("é", 200)}, got[0])
	assert.Equal(t, "Breathing exercises", got[1].Name)
	assert.InDelta(t, 0.5, got[1].Priority, 1e-9)
	assert.Equal(t, "Related resource", got[2].Name)
	assert.InDelta(t, 0.6, got[2].Priority, 1e-9)
	s.AssertExpectations(t)
}

func TestGenerate_SearchFailureFallsBackToRules(t *testing.T) {
	s := &MockSearcher{}
	s.On("Search", mock.Anything, 3).Return(nil, errors.New("vector store down"))

	failures := 0
	got := NewRanker(lexicon.Default(), s, WithSearchTimeout(time.Second), WithFailureHook(func() { failures++ })).
		Generate(context.Background(), []needs.Candidate{{Type: "social"}}, stage.Middle)

	assert.Equal(t, 1, failures)
	require.Len(t, got, 2)
	assert.Equal(t, "Family support resources", got[0].Name)
	assert.Equal(t, "Volunteer companionship", got[1].Name)
}

func TestGenerate_NoNeeds(t *testing.T) {
	got := NewRanker(lexicon.Default(), nil).Generate(context.Background(), nil, stage.Early)
	assert.Empty(t, got)
}

func TestDedupe_NoDuplicatePairs(t *testing.T) {
	items := []Recommendation{
		{Type: "a", Name: "x", Priority: 3},
		{Type: "a", Name: "y", Priority: 2},
		{Type: "b", Name: "x", Priority: 2},
		{Type: "a", Name: "x", Priority: 1},
	}
	got := Dedupe(items)
	require.Len(t, got, 3)
	assert.InDelta(t, 3.0, got[0].Priority, 1e-9)
}
