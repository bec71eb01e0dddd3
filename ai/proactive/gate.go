// Package proactive decides whether the assistant should end a reply with a
// question of its own, and which one.
package proactive

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hrygo/alsassist/ai/lexicon"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/ai/stage"
)

// Gate thresholds.
const (
	MinTurns      = 3
	Cooldown      = 5 * time.Minute
	MinEngagement = 0.3
	AskChance     = 0.3
)

// Rand is the randomness the gate draws from. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Option configures a Gate.
type Option func(*Gate)

// WithRand replaces the process-wide random source.
func WithRand(r Rand) Option {
	return func(g *Gate) { g.rand = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate picks proactive questions.
type Gate struct {
	lex  *lexicon.Lexicon
	rand Rand
	now  func() time.Time
}

// NewGate creates a Gate over the question tables of lex.
func NewGate(lex *lexicon.Lexicon, opts ...Option) *Gate {
	g := &Gate{lex: lex, rand: globalRand{}, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextQuestion returns a question to append to the reply, if one should be
// asked. A pending follow-up on the last topic wins over the stage pool.
func (g *Gate) NextQuestion(sess *session.Session, st stage.Stage) (string, bool) {
	if sess == nil || !g.shouldAsk(sess) {
		return "", false
	}

	if sess.LastTopic != "" {
		if q, ok := g.lex.FollowUpQuestion(sess.LastTopic); ok {
			return q, true
		}
	}

	pools := g.lex.Questions[string(st)]
	if len(pools) == 0 {
		return "", false
	}
	questions := pools[g.rand.IntN(len(pools))].Questions
	if len(questions) == 0 {
		return "", false
	}
	return questions[g.rand.IntN(len(questions))], true
}

// shouldAsk applies the gates in order; the coin is only flipped when every
// deterministic gate passes.
func (g *Gate) shouldAsk(sess *session.Session) bool {
	if sess.TurnCount < MinTurns {
		return false
	}
	if sess.LastQuestionTime != nil && g.now().Sub(*sess.LastQuestionTime) < Cooldown {
		return false
	}
	if sess.EngagementScore < MinEngagement {
		return false
	}
	return g.rand.Float64() < AskChance
}

// DetectTopic returns the first follow-up topic whose trigger occurs in text,
// or "" when none does.
func (g *Gate) DetectTopic(text string) string {
	lower := strings.ToLower(text)
	for _, f := range g.lex.FollowUps {
		if f.Matches(lower) {
			return f.Topic
		}
	}
	return ""
}
