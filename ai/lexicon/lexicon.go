// Package lexicon holds the locale word lists and tables every classifier in
// the turn pipeline is parameterized by. One Lexicon exists per locale; the
// classifiers themselves contain no language-specific text.
package lexicon

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"

	"github.com/hrygo/alsassist/ai/configloader"
)

//go:embed data/*.yaml
var builtin embed.FS

// Supported locales.
const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

// Lexicon is the full set of locale tables.
type Lexicon struct {
	Locale           string                        `yaml:"locale"`
	Emotion          EmotionWords                  `yaml:"emotion"`
	Needs            []NeedRule                    `yaml:"needs"`
	StageMultipliers map[string]map[string]float64 `yaml:"stage_multipliers"`
	StageNames       map[string]string             `yaml:"stage_names"`
	StageIndicators  StageIndicators               `yaml:"stage_indicators"`
	Catalog          map[string][]CatalogEntry     `yaml:"catalog"`
	Questions        map[string][]QuestionPool     `yaml:"questions"`
	FollowUps        []FollowUp                    `yaml:"follow_ups"`
}

// EmotionWords lists the affect keywords per category.
type EmotionWords struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
	Neutral  []string `yaml:"neutral"`
}

// NeedRule is the keyword and pattern set for one need category.
type NeedRule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// Compiled returns the compiled patterns in declaration order.
func (r NeedRule) Compiled() []*regexp.Regexp {
	return r.compiled
}

// StageIndicators maps free-text phrases to rough functional scores.
type StageIndicators struct {
	Mobility  []Indicator `yaml:"mobility"`
	Speech    []Indicator `yaml:"speech"`
	Breathing []Indicator `yaml:"breathing"`
}

// Indicator assigns Value when any of Phrases occurs.
type Indicator struct {
	Phrases []string `yaml:"phrases"`
	Value   float64  `yaml:"value"`
}

// CatalogEntry is a static recommendation rule.
type CatalogEntry struct {
	Type     string  `yaml:"type"`
	Name     string  `yaml:"name"`
	Priority float64 `yaml:"priority"`
}

// QuestionPool is one category of proactive questions for a stage.
type QuestionPool struct {
	Category  string   `yaml:"category"`
	Questions []string `yaml:"questions"`
}

// FollowUp is the canned question asked after a topic was raised.
type FollowUp struct {
	Topic    string   `yaml:"topic"`
	Question string   `yaml:"question"`
	Triggers []string `yaml:"triggers"`

	matcher *regexp.Regexp
}

// Matches reports whether any trigger occurs in the lowercased text. Outside
// zh, triggers only match whole words or their plural.
func (f FollowUp) Matches(lowerText string) bool {
	if f.matcher == nil {
		return false
	}
	return f.matcher.MatchString(lowerText)
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the built-in English lexicon. It panics if the embedded
// data is broken, which only a bad build can cause.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Load(LocaleEN, "")
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded %s data: %v", LocaleEN, err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Load reads the lexicon for locale. Files in overrideDir named
// "<locale>.yaml" replace the built-in table for that locale.
func Load(locale, overrideDir string) (*Lexicon, error) {
	loader := configloader.NewLoader(overrideDir, builtinData())

	lex := &Lexicon{}
	if err := loader.Load(locale+".yaml", lex); err != nil {
		return nil, fmt.Errorf("load lexicon %q: %w", locale, err)
	}
	if lex.Locale == "" {
		lex.Locale = locale
	}
	if err := lex.prepare(); err != nil {
		return nil, fmt.Errorf("lexicon %q: %w", locale, err)
	}
	return lex, nil
}

// prepare lowercases keywords, compiles patterns and checks that the tables
// the pipeline relies on are present.
func (l *Lexicon) prepare() error {
	if len(l.Needs) == 0 {
		return fmt.Errorf("no need categories")
	}
	if len(l.StageNames) == 0 {
		return fmt.Errorf("no stage names")
	}

	l.Emotion.Positive = lowerAll(l.Emotion.Positive)
	l.Emotion.Negative = lowerAll(l.Emotion.Negative)
	l.Emotion.Neutral = lowerAll(l.Emotion.Neutral)

	seen := make(map[string]bool, len(l.Needs))
	for i := range l.Needs {
		rule := &l.Needs[i]
		if rule.Type == "" || seen[rule.Type] {
			return fmt.Errorf("need category %d: empty or duplicate type %q", i, rule.Type)
		}
		seen[rule.Type] = true

		rule.Keywords = lowerAll(rule.Keywords)
		rule.compiled = make([]*regexp.Regexp, 0, len(rule.Patterns))
		for _, p := range rule.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("need %s pattern %q: %w", rule.Type, p, err)
			}
			rule.compiled = append(rule.compiled, re)
		}
	}

	for i := range l.FollowUps {
		f := &l.FollowUps[i]
		f.Triggers = lowerAll(f.Triggers)
		re, err := compileTriggers(f.Triggers, l.Locale != LocaleZH)
		if err != nil {
			return fmt.Errorf("follow-up %s: %w", f.Topic, err)
		}
		f.matcher = re
	}
	for _, list := range [][]Indicator{l.StageIndicators.Mobility, l.StageIndicators.Speech, l.StageIndicators.Breathing} {
		for i := range list {
			list[i].Phrases = lowerAll(list[i].Phrases)
		}
	}
	return nil
}

// NeedTypes returns the need categories in declaration order.
func (l *Lexicon) NeedTypes() []string {
	types := make([]string, len(l.Needs))
	for i, r := range l.Needs {
		types[i] = r.Type
	}
	return types
}

// StageMultiplier returns the boost for a need category under a stage, 1 when
// none is configured.
func (l *Lexicon) StageMultiplier(stage, needType string) float64 {
	if m, ok := l.StageMultipliers[stage][needType]; ok {
		return m
	}
	return 1
}

// StageName returns the display name for stage, or the stage itself.
func (l *Lexicon) StageName(stage string) string {
	if name, ok := l.StageNames[stage]; ok {
		return name
	}
	return stage
}

// FollowUpQuestion returns the canned question for topic.
func (l *Lexicon) FollowUpQuestion(topic string) (string, bool) {
	for _, f := range l.FollowUps {
		if f.Topic == topic {
			return f.Question, true
		}
	}
	return "", false
}

// ContainsAny reports whether the lowercased text contains any of words.
func ContainsAny(lowerText string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(lowerText, w) {
			return true
		}
	}
	return false
}

// compileTriggers builds one alternation over words. zh text has no word
// separators, so its triggers stay plain substrings.
func compileTriggers(words []string, wordBounded bool) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	expr := "(?:" + strings.Join(quoted, "|") + ")"
	if wordBounded {
		expr = `\b` + expr + `(?:s|es)?\b`
	}
	return regexp.Compile(expr)
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, strings.ToLower(strings.TrimSpace(w)))
	}
	return out
}

func builtinData() fs.FS {
	sub, err := fs.Sub(builtin, "data")
	if err != nil {
		panic(err)
	}
	return sub
}
