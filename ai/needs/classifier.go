// Package needs detects which categories of support a message asks for.
package needs

import (
	"sort"
	"strings"

	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/stage"
)

const (
	keywordWeight = 0.3
	patternWeight = 0.5
	minConfidence = 0.3
	maxCandidates = 3
)

// Candidate is a detected need.
type Candidate struct {
	Type            string   `json:"type"`
	MatchedKeywords []string `json:"matched_keywords"`
	Confidence      float64  `json:"confidence"`
}

// Classifier scores messages against the locale's need categories.
type Classifier struct {
	lex *lexicon.Lexicon
}

// NewClassifier creates a classifier over lex.
func NewClassifier(lex *lexicon.Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

// Analyze returns at most three needs, strongest first. Raw scores are capped
// at 1; the stage multiplier is applied afterwards and may push the result
// above 1. Equal scores keep the lexicon's category order.
func (c *Classifier) Analyze(text string, st stage.Stage) []Candidate {
	candidates := c.Score(text)
	for i := range candidates {
		candidates[i].Confidence *= c.lex.StageMultiplier(string(st), candidates[i].Type)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

// Score returns every category above the retention threshold with its raw,
// stage independent confidence, in category order.
func (c *Classifier) Score(text string) []Candidate {
	lower := strings.ToLower(text)

	var out []Candidate
	for _, rule := range c.lex.Needs {
		var matched []string
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		patterns := 0
		for _, re := range rule.Compiled() {
			if re.MatchString(lower) {
				patterns++
			}
		}

		score := min(1.0, keywordWeight*float64(len(matched))+patternWeight*float64(patterns))
		if score > minConfidence {
			out = append(out, Candidate{Type: rule.Type, Confidence: score, MatchedKeywords: matched})
		}
	}
	return out
}

// Types returns the category names of candidates in order.
func Types(candidates []Candidate) []string {
	types := make([]string, len(candidates))
	for i, c := range candidates {
		types[i] = c.Type
	}
	return types
}
