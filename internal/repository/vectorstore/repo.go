// Package vectorstore persists chunk embeddings as redis hashes behind an
// FT vector index.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/filter"
)

const (
	// IndexName is the FT index over chunk hashes.
	IndexName = domain.KeyPrefix + "chunk:idx"
	// hashPrefix namespaces chunk hash keys.
	hashPrefix = domain.KeyPrefix + "chunk:"

	listPageSize = 500
)

// store is the consumer interface for chunk storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements chunk persistence over a vector-search capable store.
type Repo struct {
	store store
	dim   int
}

// New creates a vector store repository. dim is the embedding dimensionality
// baked into the FT index schema.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// EnsureIndex creates the chunk FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{hashPrefix},
		Fields: []db.IndexField{
			{Name: fieldVector, Type: db.IndexFieldVector,
				VectorAlgo: db.VectorHNSW, VectorDim: r.dim, VectorDistance: db.DistanceCosine},
			{Name: fieldSource, Type: db.IndexFieldTag},
			{Name: fieldFileType, Type: db.IndexFieldTag},
			{Name: fieldCreatedAt, Type: db.IndexFieldTag},
			{Name: fieldCategory, Type: db.IndexFieldTag},
			{Name: fieldDepartment, Type: db.IndexFieldTag},
			{Name: fieldPage, Type: db.IndexFieldNumeric},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes entries as hashes. Writes are idempotent: an unchanged chunk
// maps to the same key and simply overwrites itself.
func (r *Repo) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(entries))
	for i, e := range entries {
		items[i] = db.HashSetItem{
			Key:    hashKey(e.Key),
			Fields: buildFields(e),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(entries), err)
	}
	return nil
}

// Search runs KNN retrieval and returns chunks ordered by descending similarity.
func (r *Repo) Search(ctx context.Context, vector []float32, k int, filters filter.Expression) ([]domain.Retrieved, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]domain.Retrieved, 0, len(res.Entries))
	for _, entry := range res.Entries {
		out = append(out, parseRetrieved(entry))
	}
	return out, nil
}

// ListKeysBySource returns the index keys of all chunks belonging to source.
func (r *Repo) ListKeysBySource(ctx context.Context, source string) ([]string, error) {
	query := fmt.Sprintf("@%s:{%s}", fieldSource, db.EscapeTag(source))

	var keys []string
	offset := 0
	for {
		res, err := r.store.SearchList(ctx, IndexName, query, offset, listPageSize, []string{fieldSource})
		if err != nil {
			return nil, fmt.Errorf("list chunks of %s: %w", source, err)
		}
		for _, entry := range res.Entries {
			keys = append(keys, trimHashKey(entry.Key))
		}
		offset += len(res.Entries)
		if len(res.Entries) == 0 || offset >= res.Total {
			break
		}
	}

	return keys, nil
}

// CountBySource returns the number of stored chunks for source.
func (r *Repo) CountBySource(ctx context.Context, source string) (int, error) {
	query := fmt.Sprintf("@%s:{%s}", fieldSource, db.EscapeTag(source))
	n, err := r.store.SearchCount(ctx, IndexName, query)
	if err != nil {
		return 0, fmt.Errorf("count chunks of %s: %w", source, err)
	}
	return n, nil
}

// Delete removes chunks by index key and returns how many existed.
func (r *Repo) Delete(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	hashKeys := make([]string, len(keys))
	for i, k := range keys {
		hashKeys[i] = hashKey(k)
	}

	n, err := r.store.DelMulti(ctx, hashKeys)
	if err != nil {
		return n, fmt.Errorf("delete %d chunks: %w", len(keys), err)
	}
	return n, nil
}
