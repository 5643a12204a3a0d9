package indexing

import (
	"context"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// ChunkSource loads embedding-ready chunks from the document directory.
type ChunkSource interface {
	Load(ctx context.Context, dir string) ([]domain.Chunk, error)
}

// VectorStore persists chunk embeddings.
type VectorStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, entries []domain.VectorEntry) error
	Delete(ctx context.Context, keys []string) (int, error)
	ListKeysBySource(ctx context.Context, source string) ([]string, error)
}

// RecordManager tracks which chunk keys are indexed per source.
type RecordManager interface {
	ListKeys(ctx context.Context, source string) (map[string]time.Time, error)
	UpsertKeys(ctx context.Context, source string, keys []string, ts time.Time) error
	DeleteKeys(ctx context.Context, source string, keys []string) error
	DeleteSource(ctx context.Context, source string) (int, error)
	HasSource(ctx context.Context, source string) (bool, error)
}

// Embedder vectorizes chunk batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
