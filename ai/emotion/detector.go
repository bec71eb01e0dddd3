// Package emotion blends the sentiment model with a keyword lexicon into the
// affect signal that steers the response strategy.
package emotion

import (
	"context"
	"errors"
	"strings"

	"github.com/hrygo/alsassist/ai/core/sentiment"
	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/observability/logging"
)

// Strategy is the response style chosen from the affect signal.
type Strategy string

const (
	StrategyEmpathetic  Strategy = "empathetic"
	StrategyEncouraging Strategy = "encouraging"
	StrategyInformative Strategy = "informative"
)

const (
	agreeModelWeight   = 0.7
	agreeKeywordWeight = 0.3
	disagreeDiscount   = 0.8
	empatheticAbove    = 0.7
	fallbackScore      = 0.5
)

// ModelResult is the sentiment model's top label.
type ModelResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// KeywordScores are the normalized lexicon sub-scores. They sum to 1 unless
// no keyword matched, in which case all are 0.
type KeywordScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Top returns the highest scoring label. Ties go to the earlier of positive,
// negative, neutral.
func (k KeywordScores) Top() (string, float64) {
	label, score := sentiment.Positive, k.Positive
	if k.Negative > score {
		label, score = sentiment.Negative, k.Negative
	}
	if k.Neutral > score {
		label, score = sentiment.Neutral, k.Neutral
	}
	return label, score
}

// Signal is the combined affect estimate of one message.
type Signal struct {
	Label      string        `json:"label"`
	Strategy   Strategy      `json:"strategy"`
	Model      ModelResult   `json:"model"`
	Keywords   KeywordScores `json:"keywords"`
	Confidence float64       `json:"confidence"`
	// Degraded is set when the sentiment model failed and a neutral
	// placeholder was used in its place.
	Degraded bool `json:"degraded,omitempty"`
}

// Detector scores messages.
type Detector struct {
	model sentiment.Service
	words lexicon.EmotionWords
}

// NewDetector creates a detector over the given model and locale lexicon.
func NewDetector(model sentiment.Service, lex *lexicon.Lexicon) *Detector {
	return &Detector{model: model, words: lex.Emotion}
}

// Detect scores text. It does not fail: a model error degrades to a neutral
// model result.
func (d *Detector) Detect(ctx context.Context, text string) *Signal {
	model, degraded := d.classify(ctx, text)
	keywords := ScoreKeywords(text, d.words)
	sig := Combine(model, keywords)
	sig.Degraded = degraded
	return sig
}

func (d *Detector) classify(ctx context.Context, text string) (ModelResult, bool) {
	neutral := ModelResult{Label: sentiment.Neutral, Score: fallbackScore}
	if d.model == nil || !d.model.IsEnabled() {
		return neutral, false
	}

	res, err := d.model.Classify(ctx, text)
	if err != nil {
		if !errors.Is(err, sentiment.ErrDisabled) {
			logging.ForComponent(ctx, "emotion").Warn("sentiment model failed, using neutral", "error", err)
		}
		return neutral, true
	}
	return ModelResult{Label: sentiment.NormalizeLabel(res.Label), Score: res.Score}, false
}

// ScoreKeywords counts, per category, the lexicon keywords present in text
// (each keyword at most once) and normalizes the counts to sum to 1.
func ScoreKeywords(text string, words lexicon.EmotionWords) KeywordScores {
	lower := strings.ToLower(text)
	pos := countPresent(lower, words.Positive)
	neg := countPresent(lower, words.Negative)
	neu := countPresent(lower, words.Neutral)

	total := pos + neg + neu
	if total == 0 {
		total = 1
	}
	return KeywordScores{
		Positive: float64(pos) / float64(total),
		Negative: float64(neg) / float64(total),
		Neutral:  float64(neu) / float64(total),
	}
}

func countPresent(lower string, words []string) int {
	return len(matched(lower, words))
}

// MatchedWords returns the lexicon words present in text, in lexicon order.
func MatchedWords(text string, words []string) []string {
	return matched(strings.ToLower(text), words)
}

func matched(lower string, words []string) []string {
	var out []string
	for _, w := range words {
		if w != "" && strings.Contains(lower, w) {
			out = append(out, w)
		}
	}
	return out
}

// Combine blends a model result with keyword scores. When both agree on the
// label the confidence is a weighted mix, otherwise the model label is kept
// at a discount.
func Combine(model ModelResult, keywords KeywordScores) *Signal {
	kwLabel, kwScore := keywords.Top()

	sig := &Signal{
		Label:    model.Label,
		Model:    model,
		Keywords: keywords,
	}
	if model.Label == kwLabel {
		sig.Confidence = agreeModelWeight*model.Score + agreeKeywordWeight*kwScore
	} else {
		sig.Confidence = model.Score * disagreeDiscount
	}
	sig.Strategy = StrategyFor(sig.Label, sig.Confidence)
	return sig
}

// StrategyFor maps a label and confidence to a response strategy.
func StrategyFor(label string, confidence float64) Strategy {
	switch {
	case label == sentiment.Negative && confidence > empatheticAbove:
		return StrategyEmpathetic
	case label == sentiment.Positive:
		return StrategyEncouraging
	default:
		return StrategyInformative
	}
}
