// Package errclass classifies failures into the three classes the turn
// pipeline treats differently: validation (rejected before the pipeline),
// upstream (recovered locally with a degraded fallback) and configuration
// (fatal at startup).
package errclass

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Base errors.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMissingConfig      = errors.New("missing configuration")
)

// Class represents the category of a failure.
type Class int

const (
	// ClassInternal is an unanticipated fault. It surfaces as a generic failure.
	ClassInternal Class = iota

	// Examples: empty message, oversized message, malformed JSON.
	ClassValidation

	// Examples: redis down, generation timeout, vector search error.
	ClassUpstream

	// Examples: missing API key, missing prompt template.
	ClassConfiguration
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassUpstream:
		return "upstream"
	case ClassConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Error wraps an error with its class and the component that produced it.
type Error struct {
	Original  error
	Component string
	Class     Class
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	if e.Original == nil {
		return fmt.Sprintf("%s error in %s", e.Class, e.Component)
	}
	if e.Component == "" {
		return fmt.Sprintf("%s: %v", e.Class, e.Original)
	}
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Component, e.Original)
}

// Unwrap returns the original error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Original
}

// Validation marks err as a validation failure.
func Validation(format string, args ...any) error {
	return &Error{
		Class:    ClassValidation,
		Original: fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

// Upstream marks err as a collaborator failure of component.
func Upstream(component string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassUpstream, Component: component, Original: err}
}

// Configuration marks err as a startup configuration failure.
func Configuration(component string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassConfiguration, Component: component, Original: err}
}

// MissingConfig reports a required setting that was not provided.
func MissingConfig(component, setting string) error {
	return Configuration(component, fmt.Errorf("%w: %s", ErrMissingConfig, setting))
}

// Classify determines the class of err. Explicitly classified errors keep
// their class; timeouts, cancellations and network errors are upstream.
func Classify(err error) Class {
	if err == nil {
		return ClassInternal
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Class
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ClassValidation
	case errors.Is(err, ErrMissingConfig):
		return ClassConfiguration
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassUpstream
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassUpstream
	}

	return ClassInternal
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return err != nil && Classify(err) == ClassValidation
}

// IsUpstream reports whether err is a collaborator failure.
func IsUpstream(err error) bool {
	return err != nil && Classify(err) == ClassUpstream
}
