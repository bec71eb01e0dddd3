package store

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ConversationMessage is one archived history entry.
type ConversationMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// Conversation is an archived session.
type Conversation struct {
	Timestamp      time.Time
	FeedbackRating *int
	ID             string
	UserID         string
	ChatID         string // session id the conversation was exported from
	Summary        string
	StageEstimate  string
	Messages       []ConversationMessage
	NeedsDetected  []string
}

// FindConversation is the find condition for archived conversations.
type FindConversation struct {
	UserID *string
	ChatID *string
	Limit  int
}

// Feedback ratings are on a five point scale.
const (
	MinFeedbackRating = 1
	MaxFeedbackRating = 5
)

// AppendConversation archives a conversation. An empty ID is assigned.
func (s *Store) AppendConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	if strings.TrimSpace(create.UserID) == "" {
		return nil, errors.New("conversation user id is required")
	}
	if strings.TrimSpace(create.ChatID) == "" {
		return nil, errors.New("conversation chat id is required")
	}
	if create.FeedbackRating != nil {
		if err := validateRating(*create.FeedbackRating); err != nil {
			return nil, err
		}
	}
	if create.ID == "" {
		create.ID = shortuuid.New()
	}
	if create.Timestamp.IsZero() {
		create.Timestamp = time.Now().UTC()
	}
	if create.Messages == nil {
		create.Messages = []ConversationMessage{}
	}
	if create.NeedsDetected == nil {
		create.NeedsDetected = []string{}
	}
	return s.driver.CreateConversation(ctx, create)
}

// GetConversation returns an archived conversation or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.driver.GetConversation(ctx, id)
}

// ListConversations lists archived conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// SetFeedback records a user rating on an archived conversation.
func (s *Store) SetFeedback(ctx context.Context, id string, rating int) error {
	if err := validateRating(rating); err != nil {
		return err
	}
	return s.driver.UpdateConversationFeedback(ctx, id, rating)
}

func validateRating(rating int) error {
	if rating < MinFeedbackRating || rating > MaxFeedbackRating {
		return errors.Errorf("feedback rating must be between %d and %d, got %d", MinFeedbackRating, MaxFeedbackRating, rating)
	}
	return nil
}
