package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/alsassist/ai/core/llm"
	"github.com/hrygo/alsassist/ai/session"
)

type stubLLM struct {
	reply  string
	err    error
	prompt string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ int) (string, *llm.CallStats, error) {
	s.prompt = prompt
	return s.reply, &llm.CallStats{}, s.err
}

func (s *stubLLM) Warmup(context.Context) {}

func conversation(user ...string) []session.Message {
	var out []session.Message
	for _, u := range user {
		out = append(out,
			session.Message{Role: session.RoleUser, Content: u},
			session.Message{Role: session.RoleAssistant, Content: "I'm listening."},
		)
	}
	return out
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("llm json reply", func(t *testing.T) {
		backend := &stubLLM{reply: "```json\n{\"summary\": \"Worried about breathing at night.\"}\n```"}
		got := New(backend).Summarize(ctx, conversation("Breathing is hard at night."))
		assert.Equal(t, Result{Text: "Worried about breathing at night.", Source: SourceLLM}, got)
		assert.Contains(t, backend.prompt, "User: Breathing is hard at night.\nAssistant: I'm listening.\n")
	})

	t.Run("llm plain reply is cut", func(t *testing.T) {
		backend := &stubLLM{reply: strings.Repeat("x", 300)}
		got := New(backend).Summarize(ctx, conversation("hi"))
		assert.Equal(t, SourceLLM, got.Source)
		assert.Len(t, got.Text, DefaultMaxLen)
	})

	t.Run("llm error falls back", func(t *testing.T) {
		got := New(&stubLLM{err: errors.New("timeout")}).Summarize(ctx, conversation("I feel weak. Walking is harder."))
		assert.Equal(t, Result{Text: "I feel weak.", Source: SourceFirstSentence}, got)
	})

	t.Run("empty reply falls back", func(t *testing.T) {
		got := New(&stubLLM{reply: `{"summary": ""}`}).Summarize(ctx, conversation("no punctuation here"))
		assert.Equal(t, Result{Text: "no punctuation here", Source: SourceTruncate}, got)
	})

	t.Run("no messages", func(t *testing.T) {
		assert.Equal(t, Result{Source: SourceEmpty}, New(nil).Summarize(ctx, nil))
	})
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name     string
		messages []session.Message
		maxLen   int
		expected Result
	}{
		{"first sentence", conversation("Swallowing is hard! Any tips?"), 0, Result{Text: "Swallowing is hard!", Source: SourceFirstSentence}},
		{"chinese sentence", conversation("最近吞咽困难。怎么办？"), 0, Result{Text: "最近吞咽困难。", Source: SourceFirstSentence}},
		{"only first line", conversation("tired today\nreally. tired"), 0, Result{Text: "tired today", Source: SourceTruncate}},
		{"cut to max", conversation("abcdefgh"), 3, Result{Text: "abc", Source: SourceTruncate}},
		{"skips assistant", []session.Message{{Role: session.RoleAssistant, Content: "Hello."}, {Role: session.RoleUser, Content: "Help me."}}, 0, Result{Text: "Help me.", Source: SourceFirstSentence}},
		{"no user message", []session.Message{{Role: session.RoleAssistant, Content: "Hello."}}, 0, Result{Source: SourceEmpty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fallback(tt.messages, tt.maxLen))
		})
	}
}
