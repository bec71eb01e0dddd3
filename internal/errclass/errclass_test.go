package errclass

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClass_String(t *testing.T) {
	tests := []struct {
		class    Class
		expected string
	}{
		{ClassInternal, "internal"},
		{ClassValidation, "validation"},
		{ClassUpstream, "upstream"},
		{ClassConfiguration, "configuration"},
		{Class(99), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.class.String())
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{"validation", Validation("message is empty"), ClassValidation},
		{"upstream", Upstream("llm", errors.New("boom")), ClassUpstream},
		{"configuration", MissingConfig("llm", "API key"), ClassConfiguration},
		{"wrapped validation", fmt.Errorf("handler: %w", Validation("too long")), ClassValidation},
		{"deadline", context.DeadlineExceeded, ClassUpstream},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), ClassUpstream},
		{"unavailable", ErrServiceUnavailable, ClassUpstream},
		{"plain", errors.New("nil pointer"), ClassInternal},
		{"nil", nil, ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	root := errors.New("connection refused")
	err := Upstream("session", root)

	assert.ErrorIs(t, err, root)
	assert.True(t, IsUpstream(err))
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "upstream: session: connection refused")
}

func TestUpstream_NilPassThrough(t *testing.T) {
	assert.NoError(t, Upstream("llm", nil))
	assert.NoError(t, Configuration("llm", nil))
}
