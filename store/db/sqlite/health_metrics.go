package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/store"
)

func (d *DB) CreateHealthMetrics(ctx context.Context, create *store.HealthMetrics) (*store.HealthMetrics, error) {
	stmt := `INSERT INTO health_metrics (user_id, mobility, speech_clarity, breathing_difficulty, daily_activity_score, days_since_diagnosis, recorded_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		create.Mobility,
		create.SpeechClarity,
		create.BreathingDifficulty,
		create.DailyActivityScore,
		create.DaysSinceDiagnosis,
		create.RecordedAt.Unix(),
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create health metrics")
	}
	return create, nil
}

func (d *DB) GetLatestHealthMetrics(ctx context.Context, userID string) (*store.HealthMetrics, error) {
	query := `SELECT id, user_id, mobility, speech_clarity, breathing_difficulty, daily_activity_score, days_since_diagnosis, recorded_ts
		FROM health_metrics
		WHERE user_id = ?
		ORDER BY recorded_ts DESC, id DESC
		LIMIT 1`

	var (
		m  store.HealthMetrics
		ts int64
	)
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&m.ID,
		&m.UserID,
		&m.Mobility,
		&m.SpeechClarity,
		&m.BreathingDifficulty,
		&m.DailyActivityScore,
		&m.DaysSinceDiagnosis,
		&ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get health metrics")
	}
	m.RecordedAt = time.Unix(ts, 0).UTC()
	return &m, nil
}
