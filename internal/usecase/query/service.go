// Package query implements retrieval-augmented answering over the indexed
// document corpus.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/filter"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// NotFoundSentinel is emitted verbatim when retrieval produces no context.
// The system prompt instructs the model to answer with it as well, so the
// client sees the same phrase either way.
const NotFoundSentinel = "I could not find that information in the indexed documents."

// errorFragment is the single fragment emitted when generation fails mid-stream.
const errorFragment = "I ran into an error while answering. Please try again."

const (
	// DefaultTopK is the retrieval depth when the request does not set one.
	DefaultTopK = 4
	// MaxTopK caps the retrieval depth.
	MaxTopK = 20
)

const systemPrompt = `You are an assistant answering questions about internal company documents.
Answer using ONLY the provided context. Cite the source document and page when useful.
If the context does not contain the answer, reply exactly: "` + NotFoundSentinel + `"
Context:
%s`

// Request is a validated question against the corpus.
type Request struct {
	Question string
	TopK     int
	Filters  filter.Expression
}

// Service embeds the question, retrieves context, and streams a grounded
// answer.
type Service struct {
	searcher VectorSearcher
	embedder Embedder
	gen      Generator
	log      *zap.Logger
}

func New(searcher VectorSearcher, embedder Embedder, gen Generator, log *zap.Logger) *Service {
	return &Service{searcher: searcher, embedder: embedder, gen: gen, log: log}
}

// Retrieve returns the top chunks for a question without generating an answer.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]domain.Retrieved, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required: %w", domain.ErrInvalidRequest)
	}

	k := clampTopK(req.TopK)

	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := s.searcher.Search(ctx, emb.Embedding, k, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	metrics.QueryRetrievedChunks.Observe(float64(len(results)))
	return results, nil
}

// Stream answers the question as a channel of text fragments. The channel is
// closed when the answer is complete, the context is cancelled, or an error
// occurred; in the error case the last fragment is a fixed apology so the
// client stream stays well-formed. That covers retrieval failures too: once
// the request validates, problems surface on the stream, not as an error.
// When retrieval finds nothing, the sentinel is emitted without calling the
// generator at all.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question is required: %w", domain.ErrInvalidRequest)
	}

	out := make(chan string)

	results, err := s.Retrieve(ctx, req)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.log.Error("context retrieval failed", zap.Error(err))
		go func() {
			defer close(out)
			select {
			case out <- errorFragment:
			case <-ctx.Done():
			}
		}()
		return out, nil
	}

	if len(results) == 0 {
		metrics.QueriesTotal.WithLabelValues("empty").Inc()
		go func() {
			defer close(out)
			select {
			case out <- NotFoundSentinel:
			case <-ctx.Done():
			}
		}()
		return out, nil
	}

	system := fmt.Sprintf(systemPrompt, formatContext(results))

	go func() {
		defer close(out)

		err := s.gen.Stream(ctx, system, req.Question, func(frag string) error {
			select {
			case out <- frag:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				// consumer went away; nothing to report downstream
				return
			}
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			s.log.Error("answer generation failed", zap.Error(err))
			select {
			case out <- errorFragment:
			case <-ctx.Done():
			}
			return
		}

		metrics.QueriesTotal.WithLabelValues("ok").Inc()
	}()

	return out, nil
}

// formatContext renders retrieved chunks as source-attributed blocks.
func formatContext(results []domain.Retrieved) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s, page %d]\n%s", r.Meta.Source, r.Ordinal, r.Text)
	}
	return sb.String()
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k > MaxTopK:
		return MaxTopK
	default:
		return k
	}
}
