package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// HealthMetrics is one assessment of a user's functional scores. All scores
// are expected in [0,1].
type HealthMetrics struct {
	RecordedAt          time.Time
	UserID              string
	ID                  int64
	Mobility            float64
	SpeechClarity       float64
	BreathingDifficulty float64
	DailyActivityScore  float64
	DaysSinceDiagnosis  int
}

// RecordHealthMetrics stores a new assessment.
func (s *Store) RecordHealthMetrics(ctx context.Context, create *HealthMetrics) (*HealthMetrics, error) {
	if create.UserID == "" {
		return nil, errors.New("health metrics user id is required")
	}
	if create.RecordedAt.IsZero() {
		create.RecordedAt = time.Now().UTC()
	}
	return s.driver.CreateHealthMetrics(ctx, create)
}

// GetLatestHealthMetrics returns the newest assessment of a user, or nil when
// the user has none.
func (s *Store) GetLatestHealthMetrics(ctx context.Context, userID string) (*HealthMetrics, error) {
	return s.driver.GetLatestHealthMetrics(ctx, userID)
}
