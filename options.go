package docrag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain/filter"
	queryuc "github.com/kailas-cloud/docrag/internal/usecase/query"
)

// Embedder vectorizes text. Implement it to plug a custom provider into the
// client instead of OpenAI.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Result is one retrieved context chunk.
type Result struct {
	Source     string
	Page       int
	Score      float64
	Text       string
	Category   string
	Department string
}

// DocumentInfo describes one file in the document directory.
type DocumentInfo struct {
	Name     string
	Size     int64
	Modified time.Time
	Chunks   int
	Indexed  bool
}

// IndexSummary reports the outcome of one indexing pass.
type IndexSummary struct {
	Sources       int
	ChunksTotal   int
	ChunksIndexed int
	ChunksSkipped int
	ChunksDeleted int
	SourceErrors  int
	Duration      time.Duration
}

// AskOptions tunes retrieval for Ask and Retrieve.
type AskOptions struct {
	TopK    int
	Filters map[string]any
}

func askRequest(question string, opts *AskOptions) (queryuc.Request, error) {
	if opts == nil {
		opts = &AskOptions{}
	}
	filters, err := filter.FromMap(opts.Filters)
	if err != nil {
		return queryuc.Request{}, err
	}
	return queryuc.Request{Question: question, TopK: opts.TopK, Filters: filters}, nil
}

// Option configures the client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	password string

	dataDir    string
	dimensions int
	chunkSize  int
	overlap    int

	openAIKey     string
	openAIBaseURL string
	embModel      string
	chatModel     string
	inference     bool

	embedder Embedder
	logger   *zap.Logger
}

// WithRedis sets the Redis address and password.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithDataDir sets the document directory (default "data").
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithOpenAI sets credentials for embeddings, answer generation, and
// metadata inference.
func WithOpenAI(apiKey, baseURL string) Option {
	return func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	}
}

// WithModels overrides the embedding and chat models.
func WithModels(embeddingModel string, dimensions int, chatModel string) Option {
	return func(c *clientConfig) {
		if embeddingModel != "" {
			c.embModel = embeddingModel
		}
		if dimensions > 0 {
			c.dimensions = dimensions
		}
		if chatModel != "" {
			c.chatModel = chatModel
		}
	}
}

// WithChunking overrides chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(c *clientConfig) {
		c.chunkSize = size
		c.overlap = overlap
	}
}

// WithInference enables LLM metadata classification during indexing.
func WithInference() Option {
	return func(c *clientConfig) {
		c.inference = true
	}
}

// WithEmbedder plugs a custom embedding provider.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
