// Package sentiment is the client for the statistical sentiment classifier
// served behind a Hugging Face style inference endpoint.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Normalized labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// ErrDisabled is returned by Classify when no classifier is configured.
var ErrDisabled = errors.New("sentiment classifier disabled")

// Result is the top label of a classification.
type Result struct {
	Label string  // positive, negative or neutral
	Score float64 // model probability of Label
}

// Service classifies free text.
type Service interface {
	// Classify returns the highest scoring label for text.
	Classify(ctx context.Context, text string) (*Result, error)

	// IsEnabled returns whether the service is enabled.
	IsEnabled() bool
}

// Config represents sentiment service configuration.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

type service struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	enabled bool
}

// NewService creates a new sentiment Service.
func NewService(cfg *Config) Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &service{
		enabled: cfg.Enabled,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *service) IsEnabled() bool {
	return s.enabled
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (s *service) Classify(ctx context.Context, text string) (*Result, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.baseURL, "/") + "/" + s.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // cleanup

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sentiment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sentiment API error: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	preds, err := decodePredictions(raw)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return nil, errors.New("sentiment API returned no predictions")
	}

	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return &Result{Label: NormalizeLabel(best.Label), Score: best.Score}, nil
}

// decodePredictions accepts both the nested [[...]] shape returned for a
// single input and a flat [...] list.
func decodePredictions(raw []byte) ([]prediction, error) {
	var nested [][]prediction
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []prediction
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode sentiment response: %w", err)
	}
	return flat, nil
}

// NormalizeLabel maps a model label to positive, negative or neutral.
// Unknown labels map to neutral.
func NormalizeLabel(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "label_2":
		return Positive
	case "negative", "neg", "label_0":
		return Negative
	default:
		return Neutral
	}
}
