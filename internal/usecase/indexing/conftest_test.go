package indexing

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// mockSource serves a fixed chunk list.
type mockSource struct {
	chunks  []domain.Chunk
	err     error
	lastDir string
}

func (m *mockSource) Load(_ context.Context, dir string) ([]domain.Chunk, error) {
	m.lastDir = dir
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks, nil
}

// fakeStore is an in-memory vector store keyed by index key.
type fakeStore struct {
	mu        sync.Mutex
	vectors   map[string]domain.VectorEntry
	upserts   int
	deletes   int
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{vectors: make(map[string]domain.VectorEntry)}
}

func (f *fakeStore) EnsureIndex(context.Context) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, entries []domain.VectorEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for _, e := range entries {
		f.vectors[e.Key] = e
	}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	n := 0
	for _, key := range keys {
		if _, ok := f.vectors[key]; ok {
			delete(f.vectors, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListKeysBySource(_ context.Context, source string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key, e := range f.vectors {
		if e.Chunk.Meta.Source == source {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) CountBySource(ctx context.Context, source string) (int, error) {
	keys, _ := f.ListKeysBySource(ctx, source)
	return len(keys), nil
}

// fakeRecords is an in-memory record manager.
type fakeRecords struct {
	mu      sync.Mutex
	records map[string]map[string]time.Time // source -> key -> ts
	delErr  error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]map[string]time.Time)}
}

func (f *fakeRecords) ListKeys(_ context.Context, source string) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.records[source]))
	for k, ts := range f.records[source] {
		out[k] = ts
	}
	return out, nil
}

func (f *fakeRecords) UpsertKeys(_ context.Context, source string, keys []string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[source] == nil {
		f.records[source] = make(map[string]time.Time)
	}
	for _, k := range keys {
		f.records[source][k] = ts
	}
	return nil
}

func (f *fakeRecords) DeleteKeys(_ context.Context, source string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.records[source], k)
	}
	return nil
}

func (f *fakeRecords) HasSource(_ context.Context, source string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[source]) > 0, nil
}

func (f *fakeRecords) DeleteSource(_ context.Context, source string) (int, error) {
	if f.delErr != nil {
		return 0, f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.records[source])
	delete(f.records, source)
	return n, nil
}

// countingEmbedder returns a fixed-size vector per text and counts API calls.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
	err   error
}

func (e *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.texts += len(texts)
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts)}, nil
}

func chunkOf(source, text string) domain.Chunk {
	return domain.Chunk{
		Text:    text,
		Ordinal: 1,
		Meta: domain.Metadata{
			Source:     source,
			FileType:   "txt",
			CreatedAt:  "2026-01-01T00:00:00Z",
			Category:   domain.DefaultCategory,
			Department: domain.DefaultDepartment,
		},
	}
}

type testEnv struct {
	svc      *Service
	source   *mockSource
	store    *fakeStore
	records  *fakeRecords
	embedder *countingEmbedder
	dataDir  string
}

func newTestEnv(t *testing.T, batchSize int) *testEnv {
	t.Helper()
	env := &testEnv{
		source:   &mockSource{},
		store:    newFakeStore(),
		records:  newFakeRecords(),
		embedder: &countingEmbedder{},
		dataDir:  t.TempDir(),
	}
	env.svc = New(env.source, env.store, env.store, env.records, env.embedder,
		env.dataDir, batchSize, zap.NewNop())
	return env
}
