// Package orchestrator runs one conversation turn: it gathers the affect,
// stage and need signals, ranks recommendations, generates the reply and
// records the exchange. Collaborator failures degrade the turn instead of
// failing it.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/alsassist/ai/core/llm"
	"github.com/hrygo/alsassist/ai/emotion"
	"github.com/hrygo/alsassist/ai/metrics"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/observability/logging"
	"github.com/hrygo/alsassist/ai/prompt"
	"github.com/hrygo/alsassist/ai/recommend"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/ai/stage"
	"github.com/hrygo/alsassist/internal/errclass"
)

// ApologyText replaces the reply when generation fails.
const ApologyText = "I'm sorry, something went wrong while generating a response."

const (
	// MaxMessageLength bounds a user message in runes.
	MaxMessageLength = 2000
	// DefaultGenerationTimeout bounds one generation call.
	DefaultGenerationTimeout = 30 * time.Second
	// DefaultMaxTokens is the completion budget of one reply.
	DefaultMaxTokens = 512

	questionSeparator = "\n\n"
)

// Degraded components reported on a TurnResult.
const (
	DegradedEmotion    = "emotion"
	DegradedStage      = "stage"
	DegradedGeneration = "generation"
)

// SessionStore is the rolling session state.
type SessionStore interface {
	Get(ctx context.Context, id string) *session.Session
	Update(ctx context.Context, id, userMsg, assistantMsg string, opts session.UpdateOptions) *session.Session
}

// EmotionDetector scores the affect of a message.
type EmotionDetector interface {
	Detect(ctx context.Context, text string) *emotion.Signal
}

// StageEstimator estimates the disease stage of a user. Indicators only feed
// the turn log.
type StageEstimator interface {
	Estimate(ctx context.Context, userID string) *stage.Signal
	Indicators(text string) stage.TextIndicators
}

// NeedsAnalyzer detects need categories in a message.
type NeedsAnalyzer interface {
	Analyze(text string, st stage.Stage) []needs.Candidate
}

// Recommender ranks support recommendations.
type Recommender interface {
	Generate(ctx context.Context, detected []needs.Candidate, st stage.Stage) []recommend.Recommendation
}

// PromptBuilder renders the generation prompt.
type PromptBuilder interface {
	Build(in prompt.Input) (string, error)
}

// QuestionGate picks proactive questions and tags follow-up topics.
type QuestionGate interface {
	NextQuestion(sess *session.Session, st stage.Stage) (string, bool)
	DetectTopic(text string) string
}

// Recorder receives per-turn metrics. *metrics.PrometheusExporter satisfies it.
type Recorder interface {
	RecordTurn(status string, latency time.Duration)
	RecordGenerationFailure()
	RecordGeneration(model string, latency time.Duration, promptTokens, completionTokens int)
	RecordStage(stage string)
	RecordNeeds(types []string)
	RecordProactiveQuestion()
}

// Deps are the collaborators of an Orchestrator. Recorder may be nil.
type Deps struct {
	Sessions      SessionStore
	Emotion       EmotionDetector
	Stage         StageEstimator
	Needs         NeedsAnalyzer
	Recommender   Recommender
	Prompt        PromptBuilder
	Gate          QuestionGate
	LLM           llm.Service
	Recorder      Recorder
	PositiveWords []string // lexicon words surfaced to the encouraging template
}

// Config tunes generation.
type Config struct {
	Model             string // label for metrics
	GenerationTimeout time.Duration
	MaxTokens         int
}

// TurnRequest is one user message.
type TurnRequest struct {
	SessionID string
	UserID    string // defaults to SessionID
	Message   string
}

// TurnResult is everything a turn produced.
type TurnResult struct {
	Stage           *stage.Signal
	Emotion         *emotion.Signal
	SessionID       string
	Response        string
	Recommendations []recommend.Recommendation
	Needs           []needs.Candidate
	Degraded        []string
}

// Orchestrator sequences the turn pipeline.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Orchestrator{deps: deps, cfg: cfg, now: time.Now}
}

// ValidateMessage rejects messages the pipeline must not see.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errclass.Validation("message is empty")
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return errclass.Validation("message too long: %d characters (max %d)", n, MaxMessageLength)
	}
	return nil
}

// ProcessTurn runs one turn. Only validation and internal faults return an
// error; collaborator failures are recovered and listed in Degraded.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := o.now()
	if err := ValidateMessage(req.Message); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, errclass.Validation("session id is required")
	}
	userID := req.UserID
	if userID == "" {
		userID = req.SessionID
	}

	logger := logging.ForComponent(ctx, "orchestrator")
	sess := o.deps.Sessions.Get(ctx, req.SessionID)

	// Emotion and stage are independent of each other.
	var (
		emo *emotion.Signal
		stg *stage.Signal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emo = o.deps.Emotion.Detect(gctx, req.Message)
		return nil
	})
	g.Go(func() error {
		stg = o.deps.Stage.Estimate(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detected := o.deps.Needs.Analyze(req.Message, stg.Stage)
	recs := o.deps.Recommender.Generate(ctx, detected, stg.Stage)

	text, err := o.deps.Prompt.Build(prompt.Input{
		Message:            req.Message,
		Session:            sess,
		Emotion:            emo.Label,
		Strategy:           string(emo.Strategy),
		StageName:          stg.Name,
		Needs:              needs.Types(detected),
		PositiveIndicators: strings.Join(emotion.MatchedWords(req.Message, o.deps.PositiveWords), ", "),
	})
	if err != nil {
		o.deps.Recorder.RecordTurn(metrics.StatusError, o.now().Sub(start))
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	result := &TurnResult{
		SessionID:       req.SessionID,
		Recommendations: recs,
		Stage:           stg,
		Emotion:         emo,
		Needs:           detected,
	}
	if emo.Degraded {
		result.Degraded = append(result.Degraded, DegradedEmotion)
	}
	if stg.Degraded {
		result.Degraded = append(result.Degraded, DegradedStage)
	}

	reply, ok := o.generate(ctx, text)
	if !ok {
		result.Degraded = append(result.Degraded, DegradedGeneration)
	}

	question, asked := o.deps.Gate.NextQuestion(sess, stg.Stage)
	if asked {
		reply += questionSeparator + question
		o.deps.Recorder.RecordProactiveQuestion()
	}
	result.Response = reply

	o.deps.Sessions.Update(ctx, req.SessionID, req.Message, reply, session.UpdateOptions{
		Topic:         o.deps.Gate.DetectTopic(req.Message),
		QuestionAsked: asked,
	})

	status := metrics.StatusOK
	if len(result.Degraded) > 0 {
		status = metrics.StatusDegraded
	}
	o.deps.Recorder.RecordStage(string(stg.Stage))
	o.deps.Recorder.RecordNeeds(needs.Types(detected))
	o.deps.Recorder.RecordTurn(status, o.now().Sub(start))

	if ind := o.deps.Stage.Indicators(req.Message); !ind.Empty() {
		logger.Debug("Stage indicators in message", "indicators", ind)
	}
	logger.Info("Turn processed",
		"stage", string(stg.Stage),
		"emotion", emo.Label,
		"strategy", string(emo.Strategy),
		"needs", len(detected),
		"recommendations", len(recs),
		"question_asked", asked,
		"degraded", result.Degraded,
		"duration_ms", o.now().Sub(start).Milliseconds(),
	)
	return result, nil
}

// generate calls the backend under the generation timeout. Any failure or
// empty reply yields ApologyText.
func (o *Orchestrator) generate(ctx context.Context, text string) (string, bool) {
	if o.deps.LLM == nil {
		o.deps.Recorder.RecordGenerationFailure()
		return ApologyText, false
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	start := o.now()
	reply, stats, err := o.deps.LLM.Generate(ctx, text, o.cfg.MaxTokens)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		logging.ForComponent(ctx, "orchestrator").Warn("generation failed, sending apology",
			"error", err,
			"class", errclass.Classify(err).String(),
		)
		o.deps.Recorder.RecordGenerationFailure()
		return ApologyText, false
	}

	var promptTokens, completionTokens int
	if stats != nil {
		promptTokens, completionTokens = stats.PromptTokens, stats.CompletionTokens
	}
	o.deps.Recorder.RecordGeneration(o.cfg.Model, o.now().Sub(start), promptTokens, completionTokens)
	return reply, true
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(string, time.Duration) {}
func (nopRecorder) RecordGenerationFailure() {}
func (nopRecorder) RecordGeneration(string, time.Duration, int, int) {}
func (nopRecorder) RecordStage(string) {}
func (nopRecorder) RecordNeeds([]string) {}
func (nopRecorder) RecordProactiveQuestion() {}
