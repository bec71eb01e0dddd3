package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Conversation archive.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversationFeedback(ctx context.Context, id string, rating int) error

	// Health metrics.
	CreateHealthMetrics(ctx context.Context, create *HealthMetrics) (*HealthMetrics, error)
	GetLatestHealthMetrics(ctx context.Context, userID string) (*HealthMetrics, error)

	// Resource vectors.
	UpsertResource(ctx context.Context, resource *Resource) (*Resource, error)
	SearchResources(ctx context.Context, opts *ResourceSearchOptions) ([]*ResourceWithDistance, error)
}
