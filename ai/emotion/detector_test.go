package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/alsassist/ai/core/sentiment"
	"github.com/hrygo/alsassist/ai/lexicon"
)

// MockSentiment is a mock sentiment.Service.
type MockSentiment struct {
	mock.Mock
}

func (m *MockSentiment) Classify(ctx context.Context, text string) (*sentiment.Result, error) {
	args := m.Called(ctx, text)
	res, _ := args.Get(0).(*sentiment.Result)
	return res, args.Error(1)
}

func (m *MockSentiment) IsEnabled() bool {
	return m.Called().Bool(0)
}

func TestCombine_LabelsAgree(t *testing.T) {
	// Model says positive 0.9, lexicon is 0.6/0.2/0.2.
	sig := Combine(
		ModelResult{Label: sentiment.Positive, Score: 0.9},
		KeywordScores{Positive: 0.6, Negative: 0.2, Neutral: 0.2},
	)

	assert.Equal(t, sentiment.Positive, sig.Label)
	assert.InDelta(t, 0.81, sig.Confidence, 1e-9)
	assert.Equal(t, StrategyEncouraging, sig.Strategy)
}

func TestCombine_LabelsDisagree(t *testing.T) {
	sig := Combine(
		ModelResult{Label: sentiment.Negative, Score: 0.95},
		KeywordScores{Positive: 1},
	)

	assert.Equal(t, sentiment.Negative, sig.Label)
	assert.InDelta(t, 0.76, sig.Confidence, 1e-9)
	assert.Equal(t, StrategyEmpathetic, sig.Strategy)
	assert.InDelta(t, 1.0, sig.Keywords.Positive, 1e-9, "keyword signal is recorded")
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		confidence float64
		expected   Strategy
	}{
		{"strong negative", sentiment.Negative, 0.71, StrategyEmpathetic},
		{"weak negative", sentiment.Negative, 0.7, StrategyInformative},
		{"positive", sentiment.Positive, 0.1, StrategyEncouraging},
		{"neutral", sentiment.Neutral, 0.99, StrategyInformative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StrategyFor(tt.label, tt.confidence))
		})
	}
}

func TestScoreKeywords(t *testing.T) {
	words := lexicon.Default().Emotion

	tests := []struct {
		name     string
		text     string
		expected KeywordScores
	}{
		{"no match", "the weather today", KeywordScores{}},
		{"single category", "I am so HAPPY and grateful", KeywordScores{Positive: 1}},
		{
			"mixed",
			"I'm happy but worried and curious",
			KeywordScores{Positive: 1.0 / 3, Negative: 1.0 / 3, Neutral: 1.0 / 3},
		},
		{"repeated keyword counts once", "sad sad sad, so hopeful", KeywordScores{Positive: 0.5, Negative: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreKeywords(tt.text, words)
			assert.InDelta(t, tt.expected.Positive, got.Positive, 1e-9)
			assert.InDelta(t, tt.expected.Negative, got.Negative, 1e-9)
			assert.InDelta(t, tt.expected.Neutral, got.Neutral, 1e-9)
		})
	}
}

func TestKeywordScores_TopTieBreak(t *testing.T) {
	label, score := KeywordScores{Positive: 0.5, Negative: 0.5}.Top()
	assert.Equal(t, sentiment.Positive, label)
	assert.InDelta(t, 0.5, score, 1e-9)

	label, _ = KeywordScores{Negative: 0.5, Neutral: 0.5}.Top()
	assert.Equal(t, sentiment.Negative, label)

	label, _ = KeywordScores{}.Top()
	assert.Equal(t, sentiment.Positive, label)
}

func TestDetector_Detect(t *testing.T) {
	m := new(MockSentiment)
	m.On("IsEnabled").Return(true)
	m.On("Classify", mock.Anything, "I feel sad and lonely").
		Return(&sentiment.Result{Label: "NEGATIVE", Score: 0.9}, nil)

	d := NewDetector(m, lexicon.Default())
	sig := d.Detect(context.Background(), "I feel sad and lonely")

	require.NotNil(t, sig)
	assert.Equal(t, sentiment.Negative, sig.Label)
	assert.InDelta(t, 0.7*0.9+0.3*1.0, sig.Confidence, 1e-9)
	assert.Equal(t, StrategyEmpathetic, sig.Strategy)
	assert.False(t, sig.Degraded)
	m.AssertExpectations(t)
}

func TestDetector_ModelFailureDegrades(t *testing.T) {
	m := new(MockSentiment)
	m.On("IsEnabled").Return(true)
	m.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("503"))

	d := NewDetector(m, lexicon.Default())
	sig := d.Detect(context.Background(), "what treatment do you know about")

	assert.True(t, sig.Degraded)
	assert.Equal(t, sentiment.Neutral, sig.Model.Label)
	assert.InDelta(t, 0.5, sig.Model.Score, 1e-9)
	// Keyword label is neutral too, so the scores blend.
	assert.Equal(t, sentiment.Neutral, sig.Label)
	assert.InDelta(t, 0.7*0.5+0.3*1.0, sig.Confidence, 1e-9)
	assert.Equal(t, StrategyInformative, sig.Strategy)
}

func TestDetector_ModelDisabled(t *testing.T) {
	m := new(MockSentiment)
	m.On("IsEnabled").Return(false)

	sig := NewDetector(m, lexicon.Default()).Detect(context.Background(), "hello")
	assert.False(t, sig.Degraded)
	assert.Equal(t, sentiment.Neutral, sig.Label)
	m.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestMatchedWords(t *testing.T) {
	words := lexicon.Default().Emotion.Positive
	got := MatchedWords("I feel HAPPY and grateful today", words)
	assert.Contains(t, got, "happy")
	assert.Contains(t, got, "grateful")
	assert.Empty(t, MatchedWords("nothing to see", words))
}
