// Package session keeps the rolling per-session conversation state: the
// last messages, the turn counter and the proactivity bookkeeping.
package session

import (
	"time"
)

// DefaultEngagementScore is the engagement assumed for a fresh session.
const DefaultEngagementScore = 0.5

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the session history.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// Session is the cached state of one conversation.
type Session struct {
	CreatedAt        time.Time  `json:"created_at"`
	LastUpdatedAt    time.Time  `json:"last_updated"`
	LastQuestionTime *time.Time `json:"last_question_time,omitempty"`
	ID               string     `json:"session_id"`
	LastTopic        string     `json:"last_topic,omitempty"`
	Messages         []Message  `json:"messages"`
	TurnCount        int        `json:"turn_count"`
	EngagementScore  float64    `json:"engagement_score"`
}

// New returns the default state of a session that has no stored record.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:              id,
		Messages:        []Message{},
		CreatedAt:       now,
		LastUpdatedAt:   now,
		EngagementScore: DefaultEngagementScore,
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.LastQuestionTime != nil {
		t := *s.LastQuestionTime
		c.LastQuestionTime = &t
	}
	return &c
}

// Recent returns up to n of the latest messages, oldest first.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Snapshot is the archival copy of a session.
type Snapshot struct {
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated"`
	SessionID     string    `json:"session_id"`
	Messages      []Message `json:"messages"`
	TurnCount     int       `json:"turn_count"`
}
