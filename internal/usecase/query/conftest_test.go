package query

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/filter"
)

type mockSearcher struct {
	results []domain.Retrieved
	err     error
	lastK   int
}

func (m *mockSearcher) Search(
	_ context.Context, _ []float32, k int, _ filter.Expression,
) ([]domain.Retrieved, error) {
	m.lastK = k
	return m.results, m.err
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockGenerator struct {
	fragments  []string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (m *mockGenerator) Stream(ctx context.Context, system, user string, emit func(string) error) error {
	m.calls++
	m.lastSystem = system
	m.lastUser = user
	for _, frag := range m.fragments {
		if err := emit(frag); err != nil {
			return err
		}
	}
	return m.err
}

func retrievedChunk(source, text string, page int) domain.Retrieved {
	return domain.Retrieved{
		Key:     "key-" + source,
		Score:   0.9,
		Text:    text,
		Ordinal: page,
		Meta:    domain.Metadata{Source: source, FileType: "txt"},
	}
}

func newTestService(t *testing.T) (*Service, *mockSearcher, *mockEmbedder, *mockGenerator) {
	t.Helper()
	searcher := &mockSearcher{}
	embedder := &mockEmbedder{}
	gen := &mockGenerator{}
	svc := New(searcher, embedder, gen, zap.NewNop())
	return svc, searcher, embedder, gen
}

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var out []string
	for frag := range ch {
		out = append(out, frag)
	}
	return out
}
