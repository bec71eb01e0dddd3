package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	messages, err := json.Marshal(create.Messages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal conversation messages")
	}
	needs, err := json.Marshal(create.NeedsDetected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal detected needs")
	}

	stmt := `INSERT INTO conversation (id, user_id, chat_id, created_ts, messages, summary, stage_estimate, needs_detected, feedback_rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UserID,
		create.ChatID,
		create.Timestamp.Unix(),
		string(messages),
		create.Summary,
		create.StageEstimate,
		string(needs),
		nullableInt(create.FeedbackRating),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return create, nil
}

func (d *DB) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	list, err := d.queryConversations(ctx, "id = ?", []any{id}, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.ChatID != nil {
		where, args = append(where, "chat_id = ?"), append(args, *find.ChatID)
	}
	return d.queryConversations(ctx, strings.Join(where, " AND "), args, find.Limit)
}

func (d *DB) queryConversations(ctx context.Context, where string, args []any, limit int) ([]*store.Conversation, error) {
	query := `SELECT id, user_id, chat_id, created_ts, messages, summary, stage_estimate, needs_detected, feedback_rating
		FROM conversation
		WHERE ` + where + `
		ORDER BY created_ts DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := []*store.Conversation{}
	for rows.Next() {
		var (
			c        store.Conversation
			ts       int64
			messages string
			needs    string
			rating   sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.ChatID, &ts, &messages, &c.Summary, &c.StageEstimate, &needs, &rating); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		c.Timestamp = time.Unix(ts, 0).UTC()
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal conversation messages")
		}
		if err := json.Unmarshal([]byte(needs), &c.NeedsDetected); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal detected needs")
		}
		if rating.Valid {
			r := int(rating.Int64)
			c.FeedbackRating = &r
		}
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateConversationFeedback(ctx context.Context, id string, rating int) error {
	result, err := d.db.ExecContext(ctx, `UPDATE conversation SET feedback_rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return errors.Wrap(err, "failed to update conversation feedback")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
