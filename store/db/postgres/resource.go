package postgres

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/store"
)

func (d *DB) UpsertResource(ctx context.Context, resource *store.Resource) (*store.Resource, error) {
	metadata, err := json.Marshal(resource.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal resource metadata")
	}

	stmt := `
		INSERT INTO resource (id, content, metadata, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		resource.ID,
		resource.Content,
		string(metadata),
		resource.Model,
		pgvector.NewVector(resource.Embedding),
		resource.CreatedTs,
		resource.UpdatedTs,
	).Scan(&resource.CreatedTs, &resource.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert resource")
	}
	return resource, nil
}

// SearchResources orders by cosine distance (<=>) using pgvector.
func (d *DB) SearchResources(ctx context.Context, opts *store.ResourceSearchOptions) ([]*store.ResourceWithDistance, error) {
	args := []any{pgvector.NewVector(opts.Vector), opts.Model}
	where := []string{"model = " + placeholder(2)}

	// Sorted so the generated SQL is stable for a given filter set.
	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		where = append(where, "metadata->>"+placeholder(len(args)+1)+" = "+placeholder(len(args)+2))
		args = append(args, k, opts.Filters[k])
	}

	query := `
		SELECT id, content, metadata, model, embedding, created_ts, updated_ts, embedding <=> ` + placeholder(1) + ` AS distance
		FROM resource
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance ASC
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, opts.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search resources")
	}
	defer rows.Close()

	results := []*store.ResourceWithDistance{}
	for rows.Next() {
		var (
			r        store.Resource
			metadata []byte
			vector   pgvector.Vector
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.Model, &vector, &r.CreatedTs, &r.UpdatedTs, &distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan resource")
		}
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal resource metadata")
		}
		r.Embedding = vector.Slice()
		results = append(results, &store.ResourceWithDistance{Resource: &r, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
