// Package stage maps functional health metrics to a disease stage.
package stage

import (
	"context"
	"strings"
	"time"

	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/observability/logging"
)

// Stage is an ordinal severity band.
type Stage string

const (
	Early    Stage = "early"
	Middle   Stage = "middle"
	Advanced Stage = "advanced"
	Terminal Stage = "terminal"
)

// Ordered lists the stages from least to most severe.
var Ordered = []Stage{Early, Middle, Advanced, Terminal}

// Severity returns the position of s in Ordered, -1 if unknown.
func (s Stage) Severity() int {
	for i, o := range Ordered {
		if o == s {
			return i
		}
	}
	return -1
}

// Metrics are the normalized functional scores of a user.
type Metrics struct {
	Mobility            float64 `json:"mobility"`
	SpeechClarity       float64 `json:"speech_clarity"`
	BreathingDifficulty float64 `json:"breathing_difficulty"`
	DailyActivityScore  float64 `json:"daily_activity_score"`
	DaysSinceDiagnosis  int     `json:"days_since_diagnosis"`
}

// DefaultMetrics are used when no metrics can be fetched for a user.
var DefaultMetrics = Metrics{
	Mobility:            0.7,
	SpeechClarity:       0.8,
	BreathingDifficulty: 0.3,
	DailyActivityScore:  0.75,
	DaysSinceDiagnosis:  365,
}

// MetricsSource provides the latest metrics of a user.
type MetricsSource interface {
	FetchHealthMetrics(ctx context.Context, userID string) (*Metrics, error)
}

// Probabilities is the per-stage weight table chosen by the ladder. The
// entries are fixed lookup values and do not sum to 1.
type Probabilities map[Stage]float64

// Signal is the stage estimate of a user.
type Signal struct {
	AssessedAt    time.Time     `json:"assessed_at"`
	Probabilities Probabilities `json:"probabilities"`
	Stage         Stage         `json:"stage"`
	Name          string        `json:"stage_name"`
	Confidence    float64       `json:"confidence"`
	Metrics       Metrics       `json:"metrics"`
	// Degraded is set when metrics could not be fetched and defaults were used.
	Degraded bool `json:"degraded,omitempty"`
}

// rung is one branch of the decision ladder.
type rung struct {
	match func(m Metrics) bool
	probs Probabilities
}

// ladder is evaluated top to bottom and the first match wins. Later rungs
// overlap earlier ones, so the order must not change.
var ladder = []rung{
	{
		match: func(m Metrics) bool {
			return m.Mobility > 0.8 && m.SpeechClarity > 0.8 && m.BreathingDifficulty < 0.2
		},
		probs: Probabilities{Early: 0.8, Middle: 0.2, Advanced: 0, Terminal: 0},
	},
	{
		match: func(m Metrics) bool {
			return m.Mobility > 0.5 && m.SpeechClarity > 0.5 && m.DailyActivityScore > 0.5
		},
		probs: Probabilities{Early: 0.1, Middle: 0.7, Advanced: 0.2, Terminal: 0},
	},
	{
		match: func(m Metrics) bool {
			return m.Mobility > 0.2 || m.SpeechClarity > 0.3
		},
		probs: Probabilities{Early: 0, Middle: 0.2, Advanced: 0.7, Terminal: 0.1},
	},
	{
		match: func(Metrics) bool { return true },
		probs: Probabilities{Early: 0, Middle: 0, Advanced: 0.3, Terminal: 0.7},
	},
}

// Estimator derives a Signal from a MetricsSource.
type Estimator struct {
	source MetricsSource
	lex    *lexicon.Lexicon
	now    func() time.Time
}

// NewEstimator creates an estimator. A nil source always uses DefaultMetrics.
func NewEstimator(source MetricsSource, lex *lexicon.Lexicon) *Estimator {
	return &Estimator{source: source, lex: lex, now: time.Now}
}

// Estimate fetches the metrics of userID and classifies them. A fetch failure
// falls back to DefaultMetrics and marks the signal degraded.
func (e *Estimator) Estimate(ctx context.Context, userID string) *Signal {
	metrics := DefaultMetrics
	degraded := false

	if e.source != nil {
		m, err := e.source.FetchHealthMetrics(ctx, userID)
		switch {
		case err != nil:
			logging.ForComponent(ctx, "stage").Warn("health metrics unavailable, using defaults", "user_id", userID, "error", err)
			degraded = true
		case m != nil:
			metrics = *m
		}
	}

	sig := Classify(metrics)
	sig.Name = e.lex.StageName(string(sig.Stage))
	sig.AssessedAt = e.now()
	sig.Degraded = degraded
	return sig
}

// Indicators extracts the text indicators of text with the estimator's
// lexicon.
func (e *Estimator) Indicators(text string) TextIndicators {
	return ExtractIndicators(text, e.lex)
}

// Classify runs the ladder over m. Values outside [0,1] are clamped first.
func Classify(m Metrics) *Signal {
	m.Mobility = clamp01(m.Mobility)
	m.SpeechClarity = clamp01(m.SpeechClarity)
	m.BreathingDifficulty = clamp01(m.BreathingDifficulty)
	m.DailyActivityScore = clamp01(m.DailyActivityScore)

	var probs Probabilities
	for _, r := range ladder {
		if r.match(m) {
			probs = r.probs
			break
		}
	}

	// Ties go to the less severe stage.
	best := Ordered[0]
	for _, s := range Ordered[1:] {
		if probs[s] > probs[best] {
			best = s
		}
	}

	out := make(Probabilities, len(probs))
	for k, v := range probs {
		out[k] = v
	}
	return &Signal{
		Stage:         best,
		Name:          string(best),
		Confidence:    probs[best],
		Probabilities: out,
		Metrics:       m,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// TextIndicators are functional hints read from a free-text message. A nil
// field means the message said nothing about it.
type TextIndicators struct {
	Mobility  *float64 `json:"mobility,omitempty"`
	Speech    *float64 `json:"speech,omitempty"`
	Breathing *float64 `json:"breathing,omitempty"`
}

// Empty reports whether no indicator was found.
func (t TextIndicators) Empty() bool {
	return t.Mobility == nil && t.Speech == nil && t.Breathing == nil
}

// ExtractIndicators scans text for the locale's stage phrases. The first
// matching phrase group per dimension wins.
func ExtractIndicators(text string, lex *lexicon.Lexicon) TextIndicators {
	lower := strings.ToLower(text)
	return TextIndicators{
		Mobility:  firstIndicator(lower, lex.StageIndicators.Mobility),
		Speech:    firstIndicator(lower, lex.StageIndicators.Speech),
		Breathing: firstIndicator(lower, lex.StageIndicators.Breathing),
	}
}

func firstIndicator(lower string, groups []lexicon.Indicator) *float64 {
	for _, g := range groups {
		if lexicon.ContainsAny(lower, g.Phrases) {
			v := g.Value
			return &v
		}
	}
	return nil
}

// SourceFunc adapts a function to MetricsSource.
type SourceFunc func(ctx context.Context, userID string) (*Metrics, error)

// FetchHealthMetrics calls f.
func (f SourceFunc) FetchHealthMetrics(ctx context.Context, userID string) (*Metrics, error) {
	return f(ctx, userID)
}
