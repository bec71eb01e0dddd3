package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hrygo/alsassist/ai/observability/logging"
	"github.com/hrygo/alsassist/internal/errclass"
)

const (
	// DefaultTTL is how long an idle session is retained.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxMessages caps the stored history. Two entries are added per turn.
	DefaultMaxMessages = 20

	keyPrefix = "context:"
)

// Store reads and writes sessions through a KV backend.
//
// There is no per-session lock: two concurrent turns on the same id both read
// the same state and the later write wins.
type Store struct {
	kv          KV
	now         func() time.Time
	onDegraded  func(op string)
	ttl         time.Duration
	maxMessages int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the session retention.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxMessages overrides the history cap.
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDegradedHook registers a callback invoked with "get" or "update" every
// time a backend failure is swallowed.
func WithDegradedHook(fn func(op string)) Option {
	return func(s *Store) { s.onDegraded = fn }
}

// NewStore creates a Store over kv. The caller owns the Store and must Close it.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		ttl:         DefaultTTL,
		maxMessages: DefaultMaxMessages,
		now:         time.Now,
		onDegraded:  func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the KV key of a session.
func Key(id string) string {
	return keyPrefix + id
}

// Get returns the stored session or a fresh default. Backend failures and
// corrupt records are logged and yield the default; Get never fails.
func (s *Store) Get(ctx context.Context, id string) *Session {
	sess, _, _ := s.load(ctx, id)
	return sess
}

// load returns the stored session, or a fresh default with found=false. err
// is set when the backend failed or the record was corrupt; the default is
// returned alongside it.
func (s *Store) load(ctx context.Context, id string) (sess *Session, found bool, err error) {
	logger := logging.ForComponent(ctx, "session")

	data, ok, err := s.kv.Get(ctx, Key(id))
	if err != nil {
		logger.Warn("session read failed, using default", "session_id", id, "error", err)
		s.onDegraded("get")
		return New(id, s.now()), false, errclass.Upstream("session", err)
	}
	if !ok {
		return New(id, s.now()), false, nil
	}

	sess = New(id, s.now())
	if err := json.Unmarshal(data, sess); err != nil {
		logger.Warn("corrupt session record, using default", "session_id", id, "error", err)
		s.onDegraded("get")
		return New(id, s.now()), false, fmt.Errorf("corrupt session record %q: %w", id, err)
	}
	sess.ID = id
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	return sess, true, nil
}

// UpdateOptions carries the proactivity bookkeeping written with a turn.
type UpdateOptions struct {
	// Topic is the follow-up topic detected in the user message; empty clears it.
	Topic string
	// QuestionAsked records that a proactive question was appended this turn.
	QuestionAsked bool
}

// Update appends one user/assistant exchange, increments the turn counter,
// trims the history and refreshes the TTL. A write failure is logged and
// swallowed; the returned session is the in-memory result either way.
func (s *Store) Update(ctx context.Context, id, userMsg, assistantMsg string, opts UpdateOptions) *Session {
	sess := s.Get(ctx, id)
	now := s.now()

	sess.Messages = append(sess.Messages,
		Message{Role: RoleUser, Content: userMsg, Timestamp: now},
		Message{Role: RoleAssistant, Content: assistantMsg, Timestamp: now},
	)
	if over := len(sess.Messages) - s.maxMessages; over > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[over:]...)
	}
	sess.TurnCount++
	sess.LastUpdatedAt = now
	sess.LastTopic = opts.Topic
	if opts.QuestionAsked {
		asked := now
		sess.LastQuestionTime = &asked
	}

	if err := s.save(ctx, sess); err != nil {
		logging.ForComponent(ctx, "session").Warn("session write failed", "session_id", id, "error", err)
		s.onDegraded("update")
	}
	return sess
}

// Clear deletes the stored session.
func (s *Store) Clear(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, Key(id))
}

// Export returns an independent copy of the session for archival. Calling it
// repeatedly without intervening updates yields equal snapshots. An unknown
// or unreadable session exports as empty.
func (s *Store) Export(ctx context.Context, id string) Snapshot {
	snap, _ := s.ExportErr(ctx, id)
	return snap
}

// ExportErr is Export that also reports backend failures, so callers can tell
// a missing session from an unavailable store. The snapshot is empty when err
// is set.
func (s *Store) ExportErr(ctx context.Context, id string) (Snapshot, error) {
	sess, found, err := s.load(ctx, id)
	if !found {
		return Snapshot{SessionID: id, Messages: []Message{}}, err
	}
	return Snapshot{
		SessionID:     id,
		Messages:      append([]Message(nil), sess.Messages...),
		TurnCount:     sess.TurnCount,
		CreatedAt:     sess.CreatedAt,
		LastUpdatedAt: sess.LastUpdatedAt,
	}, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.SetEX(ctx, Key(sess.ID), s.ttl, data)
}
