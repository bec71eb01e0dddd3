package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Resource is a chunk of support material with its embedding.
type Resource struct {
	Metadata  map[string]string
	ID        string
	Content   string
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// ResourceWithDistance is a vector search hit. Distance is the cosine
// distance, 0 for identical direction.
type ResourceWithDistance struct {
	Resource *Resource
	Distance float64
}

// ResourceSearchOptions represents the options for resource vector search.
type ResourceSearchOptions struct {
	Filters map[string]string // exact match on metadata keys
	Model   string
	Vector  []float32
	Limit   int
}

// Validate validates the ResourceSearchOptions.
func (o *ResourceSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.Errorf("vector cannot be empty")
	}
	if o.Model == "" {
		return errors.Errorf("model cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10 // Default limit
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}

// UpsertResource inserts or replaces a resource by ID.
func (s *Store) UpsertResource(ctx context.Context, resource *Resource) (*Resource, error) {
	if resource.ID == "" {
		return nil, errors.New("resource id is required")
	}
	if len(resource.Embedding) == 0 {
		return nil, errors.New("resource embedding is required")
	}
	now := time.Now().Unix()
	if resource.CreatedTs == 0 {
		resource.CreatedTs = now
	}
	resource.UpdatedTs = now
	if resource.Metadata == nil {
		resource.Metadata = map[string]string{}
	}
	return s.driver.UpsertResource(ctx, resource)
}

// SearchResources returns the resources nearest to opts.Vector, closest first.
func (s *Store) SearchResources(ctx context.Context, opts *ResourceSearchOptions) ([]*ResourceWithDistance, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.SearchResources(ctx, opts)
}
