package query

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/filter"
)

// VectorSearcher retrieves chunks by embedding similarity.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, k int, filters filter.Expression) ([]domain.Retrieved, error)
}

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator streams an answer for a system/user prompt pair. emit is called
// once per fragment; a non-nil emit error aborts generation.
type Generator interface {
	Stream(ctx context.Context, system, user string, emit func(string) error) error
}
