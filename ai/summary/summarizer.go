// Package summary condenses an archived conversation into a short summary.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/alsassist/ai/core/llm"
	"github.com/hrygo/alsassist/ai/internal/strutil"
	"github.com/hrygo/alsassist/ai/observability/logging"
	"github.com/hrygo/alsassist/ai/session"
)

const (
	// DefaultMaxLen bounds summaries in runes.
	DefaultMaxLen = 200

	defaultTimeout = 15 * time.Second
	maxTokens      = 256
)

// Source tells how a summary was produced.
type Source string

const (
	SourceLLM           Source = "llm"
	SourceFirstSentence Source = "fallback_first_sentence"
	SourceTruncate      Source = "fallback_truncate"
	SourceEmpty         Source = "empty"
)

// Result is a conversation summary.
type Result struct {
	Text   string `json:"summary"`
	Source Source `json:"source"`
}

// Summarizer asks the generation backend for a summary and falls back to the
// opening of the first user message when it is unavailable.
type Summarizer struct {
	llm     llm.Service
	timeout time.Duration
	maxLen  int
}

// New creates a Summarizer. A nil service always uses the fallback.
func New(svc llm.Service) *Summarizer {
	return &Summarizer{llm: svc, timeout: defaultTimeout, maxLen: DefaultMaxLen}
}

// Summarize never fails; generation errors degrade to the fallback.
func (s *Summarizer) Summarize(ctx context.Context, messages []session.Message) Result {
	if len(messages) == 0 {
		return Result{Source: SourceEmpty}
	}
	if s.llm == nil {
		return Fallback(messages, s.maxLen)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, _, err := s.llm.Generate(ctx, fmt.Sprintf(summaryPrompt, s.maxLen, transcript(messages)), maxTokens)
	if err != nil {
		logging.ForComponent(ctx, "summary").Warn("summary generation failed, using fallback", "error", err)
		return Fallback(messages, s.maxLen)
	}
	text := parseSummary(content)
	if text == "" {
		return Fallback(messages, s.maxLen)
	}
	return Result{Text: strutil.Runes(text, s.maxLen), Source: SourceLLM}
}

// Fallback summarizes by the first sentence of the first user message, or
// its first line cut to maxLen runes when that has no sentence end.
func Fallback(messages []session.Message, maxLen int) Result {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	var line string
	for _, m := range messages {
		if m.Role == session.RoleUser && strings.TrimSpace(m.Content) != "" {
			line, _, _ = strings.Cut(strings.TrimSpace(m.Content), "\n")
			line = strings.TrimSpace(line)
			break
		}
	}
	if line == "" {
		return Result{Source: SourceEmpty}
	}
	if idx := strings.IndexAny(line, ".!?。！？"); idx >= 0 {
		_, size := utf8.DecodeRuneInString(line[idx:])
		return Result{Text: strutil.Runes(line[:idx+size], maxLen), Source: SourceFirstSentence}
	}
	return Result{Text: strutil.Runes(line, maxLen), Source: SourceTruncate}
}

func transcript(messages []session.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Role == session.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseSummary accepts {"summary": "..."} optionally wrapped in a code fence,
// or plain text.
func parseSummary(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return strings.TrimSpace(result.Summary)
	}
	return content
}

const summaryPrompt = `Summarize the following conversation between a person living with ALS and a support assistant in at most %d characters.
Keep the concerns the person raised and any support that was suggested. Do not add anything that was not said.
Reply with JSON only: {"summary": "..."}

%s`
