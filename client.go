package docrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/chunker"
	"github.com/kailas-cloud/docrag/internal/db"
	dbRedis "github.com/kailas-cloud/docrag/internal/db/redis"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/infer"
	"github.com/kailas-cloud/docrag/internal/loader"
	"github.com/kailas-cloud/docrag/internal/repository/recordmanager"
	"github.com/kailas-cloud/docrag/internal/repository/vectorstore"
	openaiT "github.com/kailas-cloud/docrag/internal/transport/openai"
	indexinguc "github.com/kailas-cloud/docrag/internal/usecase/indexing"
	queryuc "github.com/kailas-cloud/docrag/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

// Client embeds the docrag pipeline into another Go program: index a
// directory of documents and ask questions against it without running the
// HTTP server.
type Client struct {
	store    db.Store
	indexSvc *indexinguc.Service
	querySvc *queryuc.Service
}

// New creates a docrag Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dataDir:    "data",
		dimensions: 1536,
		chunkSize:  chunker.DefaultSize,
		overlap:    chunker.DefaultOverlap,
		embModel:   "text-embedding-3-small",
		chatModel:  "gpt-4o-mini",
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("docrag: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("docrag: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("docrag: database not ready: %w", err)
	}

	return wireClient(store, cfg)
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	embedder := buildEmbedder(cfg)

	var gen queryuc.Generator = &noopGenerator{}
	var inferrer loader.Inferencer
	if cfg.openAIKey != "" {
		chat := openaiT.NewChat(&openaiT.ChatConfig{
			APIKey:  cfg.openAIKey,
			BaseURL: cfg.openAIBaseURL,
			Model:   cfg.chatModel,
			Logger:  cfg.logger,
		})
		gen = chat
		if cfg.inference {
			inferrer = infer.New(chat, cfg.logger)
		}
	}

	splitter, err := chunker.New(cfg.chunkSize, cfg.overlap)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("docrag: chunking: %w", err)
	}
	docLoader := loader.New(extract.NewRegistry(), splitter, inferrer, cfg.logger)

	vstore := vectorstore.New(store, cfg.dimensions)
	records := recordmanager.New(store)

	indexSvc := indexinguc.New(
		docLoader, vstore, vstore, records, &batchAdapter{inner: embedder},
		cfg.dataDir, 0, cfg.logger,
	)
	querySvc := queryuc.New(vstore, embedder, gen, cfg.logger)

	return &Client{
		store:    store,
		indexSvc: indexSvc,
		querySvc: querySvc,
	}, nil
}

func buildEmbedder(cfg *clientConfig) domain.Embedder {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}
	}
	if cfg.openAIKey != "" {
		return openaiT.NewEmbedder(&openaiT.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embModel,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		})
	}
	return &noopEmbedder{}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Reindex runs one synchronous indexing pass over the data directory.
func (c *Client) Reindex(ctx context.Context) (IndexSummary, error) {
	sum, err := c.indexSvc.Run(ctx, "sdk", "")
	if err != nil {
		return IndexSummary{}, fmt.Errorf("reindex: %w", err)
	}
	return IndexSummary{
		Sources:       sum.Sources,
		ChunksTotal:   sum.ChunksTotal,
		ChunksIndexed: sum.ChunksIndexed,
		ChunksSkipped: sum.ChunksSkipped,
		ChunksDeleted: sum.ChunksDeleted,
		SourceErrors:  sum.SourceErrors,
		Duration:      sum.Duration,
	}, nil
}

// DeleteDocument removes a file together with its vectors and records.
func (c *Client) DeleteDocument(ctx context.Context, filename string) error {
	if _, _, err := c.indexSvc.Delete(ctx, filename); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Documents lists indexed files with their chunk counts.
func (c *Client) Documents(ctx context.Context) ([]DocumentInfo, error) {
	docs, err := c.indexSvc.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{Name: d.Name, Size: d.Size, Modified: d.Modified, Chunks: d.Chunks, Indexed: d.Indexed}
	}
	return out, nil
}

// Retrieve returns the best matching chunks without generating an answer.
func (c *Client) Retrieve(ctx context.Context, question string, opts *AskOptions) ([]Result, error) {
	req, err := askRequest(question, opts)
	if err != nil {
		return nil, err
	}
	found, err := c.querySvc.Retrieve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	out := make([]Result, len(found))
	for i, r := range found {
		out[i] = Result{
			Source:     r.Meta.Source,
			Page:       r.Ordinal,
			Score:      r.Score,
			Text:       r.Text,
			Category:   r.Meta.Category,
			Department: r.Meta.Department,
		}
	}
	return out, nil
}

// Ask streams an answer grounded in the indexed documents. The channel is
// closed when the answer is complete or ctx is cancelled.
func (c *Client) Ask(ctx context.Context, question string, opts *AskOptions) (<-chan string, error) {
	req, err := askRequest(question, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.querySvc.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	return out, nil
}

// embedderAdapter wraps a public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchAdapter bridges a single-text embedder to the indexing batch contract.
type batchAdapter struct {
	inner domain.Embedder
}

func (a *batchAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := a.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, a.inner, texts)
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"docrag: embedder not configured (use WithOpenAI or WithEmbedder)",
	)
}

// noopGenerator returns an error on Stream call (used when no chat provider configured).
type noopGenerator struct{}

func (noopGenerator) Stream(_ context.Context, _, _ string, _ func(string) error) error {
	return errors.New("docrag: chat provider not configured (use WithOpenAI)")
}
