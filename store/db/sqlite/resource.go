package sqlite

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/store"
)

// float32ArrayToBLOB encodes a vector as little-endian float32s.
func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

// cosineDistance returns 1 - cosine similarity. Vectors of different length
// or zero norm are at distance 1.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (d *DB) UpsertResource(ctx context.Context, resource *store.Resource) (*store.Resource, error) {
	metadata, err := json.Marshal(resource.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal resource metadata")
	}

	stmt := `INSERT INTO resource (id, content, metadata, model, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			model = excluded.model,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		resource.ID,
		resource.Content,
		string(metadata),
		resource.Model,
		float32ArrayToBLOB(resource.Embedding),
		resource.CreatedTs,
		resource.UpdatedTs,
	).Scan(&resource.CreatedTs, &resource.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert resource")
	}
	return resource, nil
}

func (d *DB) SearchResources(ctx context.Context, opts *store.ResourceSearchOptions) ([]*store.ResourceWithDistance, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, content, metadata, model, embedding, created_ts, updated_ts FROM resource WHERE model = ?`,
		opts.Model,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query resources")
	}
	defer rows.Close()

	results := []*store.ResourceWithDistance{}
	for rows.Next() {
		var (
			r        store.Resource
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.Model, &blob, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan resource")
		}
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal resource metadata")
		}
		if !matchesFilters(r.Metadata, opts.Filters) {
			continue
		}
		if r.Embedding, err = blobToFloat32Array(blob); err != nil {
			return nil, errors.Wrapf(err, "resource %s", r.ID)
		}
		results = append(results, &store.ResourceWithDistance{
			Resource: &r,
			Distance: cosineDistance(opts.Vector, r.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, v := range filters {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
