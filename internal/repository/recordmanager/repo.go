// Package recordmanager tracks which chunk keys are indexed for each source
// document and when they were last written. The indexer uses it to detect
// stale chunks without re-reading the vector store.
package recordmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
)

// recordPrefix namespaces per-source record hashes.
const recordPrefix = domain.KeyPrefix + "rm:src:"

// store is the consumer interface for record persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo keeps one redis hash per source: chunk key -> last-written timestamp.
type Repo struct {
	store store
}

func New(s store) *Repo {
	return &Repo{store: s}
}

// ListKeys returns all recorded chunk keys of source with their timestamps.
// A source that was never indexed yields an empty map.
func (r *Repo) ListKeys(ctx context.Context, source string) (map[string]time.Time, error) {
	raw, err := r.store.HGetAll(ctx, recordKey(source))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return map[string]time.Time{}, nil
		}
		return nil, fmt.Errorf("list records of %s: %w", source, err)
	}

	out := make(map[string]time.Time, len(raw))
	for key, tsStr := range raw {
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			// a corrupt timestamp makes the key look stale, which is safe
			continue
		}
		out[key] = ts
	}
	return out, nil
}

// UpsertKeys records keys as written at ts.
func (r *Repo) UpsertKeys(ctx context.Context, source string, keys []string, ts time.Time) error {
	if len(keys) == 0 {
		return nil
	}

	fields := make(map[string]string, len(keys))
	tsStr := ts.UTC().Format(time.RFC3339Nano)
	for _, key := range keys {
		fields[key] = tsStr
	}

	if err := r.store.HSet(ctx, recordKey(source), fields); err != nil {
		return fmt.Errorf("record %d keys of %s: %w", len(keys), source, err)
	}
	return nil
}

// DeleteKeys removes individual key records of source.
func (r *Repo) DeleteKeys(ctx context.Context, source string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.HDel(ctx, recordKey(source), keys...); err != nil {
		return fmt.Errorf("unrecord %d keys of %s: %w", len(keys), source, err)
	}
	return nil
}

// DeleteSource drops the whole record hash of source and returns how many
// keys it held.
func (r *Repo) DeleteSource(ctx context.Context, source string) (int, error) {
	records, err := r.ListKeys(ctx, source)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := r.store.Del(ctx, recordKey(source)); err != nil {
		return 0, fmt.Errorf("delete records of %s: %w", source, err)
	}
	return len(records), nil
}

// HasSource reports whether any records exist for source.
func (r *Repo) HasSource(ctx context.Context, source string) (bool, error) {
	ok, err := r.store.Exists(ctx, recordKey(source))
	if err != nil {
		return false, fmt.Errorf("look up records of %s: %w", source, err)
	}
	return ok, nil
}

func recordKey(source string) string {
	return recordPrefix + source
}
