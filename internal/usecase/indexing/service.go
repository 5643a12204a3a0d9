package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Summary reports the outcome of one indexing run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Sources       int           `json:"sources"`
	ChunksTotal   int           `json:"chunks_total"`
	ChunksIndexed int           `json:"chunks_indexed"`
	ChunksSkipped int           `json:"chunks_skipped"`
	ChunksDeleted int           `json:"chunks_deleted"`
	SourceErrors  int           `json:"source_errors"`
	Duration      time.Duration `json:"-"`
}

// DocumentInfo describes one file in the document directory. Indexed is
// false for uploads the worker has not processed yet.
type DocumentInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Chunks   int       `json:"chunks"`
	Indexed  bool      `json:"indexed"`
}

// ChunkCounter reports how many chunks are stored for a source.
type ChunkCounter interface {
	CountBySource(ctx context.Context, source string) (int, error)
}

// Service implements incremental indexing of the document directory.
// Runs are serialized through a single worker; triggering while a run is
// queued is a no-op.
type Service struct {
	source    ChunkSource
	store     VectorStore
	counter   ChunkCounter
	records   RecordManager
	embedder  Embedder
	dataDir   string
	batchSize int
	log       *zap.Logger

	triggers chan runRequest
}

// runRequest is one queued indexing run. An empty dir means the configured
// document directory.
type runRequest struct {
	trigger string
	dir     string
}

// New creates the indexing service. batchSize bounds how many chunks are
// embedded and written per provider call.
func New(
	source ChunkSource,
	store VectorStore,
	counter ChunkCounter,
	records RecordManager,
	embedder Embedder,
	dataDir string,
	batchSize int,
	log *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{
		source:    source,
		store:     store,
		counter:   counter,
		records:   records,
		embedder:  embedder,
		dataDir:   dataDir,
		batchSize: batchSize,
		log:       log,
		triggers:  make(chan runRequest, 1),
	}
}

// Start launches the background worker that consumes triggers until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-s.triggers:
				if _, err := s.Run(ctx, req.trigger, req.dir); err != nil && ctx.Err() == nil {
					s.log.Error("indexing run failed", zap.String("trigger", req.trigger), zap.Error(err))
				}
			}
		}
	}()
}

// Trigger enqueues a run of dir without waiting for it; an empty dir means
// the configured document directory. Returns false when a run is already
// queued.
func (s *Service) Trigger(trigger, dir string) bool {
	select {
	case s.triggers <- runRequest{trigger: trigger, dir: dir}:
		return true
	default:
		return false
	}
}

// Run walks the document directory and reconciles the vector store with it:
// new and changed chunks are embedded and written, unchanged chunks are
// skipped, and chunks whose content disappeared are removed. One broken
// source never aborts the run.
func (s *Service) Run(ctx context.Context, trigger, dir string) (Summary, error) {
	runStart := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	if dir == "" {
		dir = s.dataDir
	}

	log := s.log.With(zap.String("run_id", summary.RunID), zap.String("trigger", trigger))
	log.Info("indexing run started", zap.String("dir", dir))

	if err := s.store.EnsureIndex(ctx); err != nil {
		metrics.IndexRunsTotal.WithLabelValues(trigger, "error").Inc()
		return summary, fmt.Errorf("ensure index: %w", err)
	}

	chunks, err := s.source.Load(ctx, dir)
	if err != nil {
		metrics.IndexRunsTotal.WithLabelValues(trigger, "error").Inc()
		return summary, fmt.Errorf("load documents: %w", err)
	}
	summary.ChunksTotal = len(chunks)

	for _, group := range groupBySource(chunks) {
		summary.Sources++
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := s.indexSource(ctx, group, runStart, &summary); err != nil {
			summary.SourceErrors++
			metrics.IndexDocumentErrorsTotal.WithLabelValues("store").Inc()
			log.Warn("source indexed incompletely",
				zap.String("source", group.source), zap.Error(err))
		}
	}

	summary.Duration = time.Since(runStart)
	metrics.IndexRunsTotal.WithLabelValues(trigger, "ok").Inc()
	metrics.IndexRunDuration.Observe(summary.Duration.Seconds())

	log.Info("indexing run finished",
		zap.Int("sources", summary.Sources),
		zap.Int("chunks_total", summary.ChunksTotal),
		zap.Int("chunks_indexed", summary.ChunksIndexed),
		zap.Int("chunks_skipped", summary.ChunksSkipped),
		zap.Int("chunks_deleted", summary.ChunksDeleted),
		zap.Int("source_errors", summary.SourceErrors),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

type sourceGroup struct {
	source string
	chunks []domain.Chunk
}

// groupBySource keeps each source's chunks together, in directory order.
func groupBySource(chunks []domain.Chunk) []sourceGroup {
	var groups []sourceGroup
	idx := make(map[string]int)
	for _, c := range chunks {
		i, ok := idx[c.Meta.Source]
		if !ok {
			i = len(groups)
			idx[c.Meta.Source] = i
			groups = append(groups, sourceGroup{source: c.Meta.Source})
		}
		groups[i].chunks = append(groups[i].chunks, c)
	}
	return groups
}

// indexSource reconciles a single document. Unchanged chunks only get their
// record timestamp refreshed; after all batches, records older than runStart
// are stale and their vectors are removed.
func (s *Service) indexSource(ctx context.Context, group sourceGroup, runStart time.Time, summary *Summary) error {
	existing, err := s.records.ListKeys(ctx, group.source)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(group.chunks))
	var failed int
	var firstErr error

	for batch := range batches(group.chunks, s.batchSize) {
		var entries []domain.VectorEntry
		var texts []string
		var batchKeys []string

		for _, chunk := range batch {
			key := chunk.Key()
			if seen[key] {
				// duplicate content within the same document
				continue
			}
			seen[key] = true
			batchKeys = append(batchKeys, key)

			if _, ok := existing[key]; ok {
				summary.ChunksSkipped++
				continue
			}

			entries = append(entries, domain.VectorEntry{Key: key, Chunk: chunk})
			texts = append(texts, chunk.Text)
		}

		if len(entries) > 0 {
			embedded, err := s.embedder.BatchEmbed(ctx, texts)
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("embed batch: %w", err)
				}
				s.log.Warn("batch skipped after embedding failure",
					zap.String("source", group.source), zap.Error(err))
				continue
			}
			for i := range entries {
				entries[i].Vector = embedded.Embeddings[i]
			}

			if err := s.store.Upsert(ctx, entries); err != nil {
				failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("store batch: %w", err)
				}
				s.log.Warn("batch skipped after store failure",
					zap.String("source", group.source), zap.Error(err))
				continue
			}
			summary.ChunksIndexed += len(entries)
			metrics.IndexChunksTotal.WithLabelValues("upsert").Add(float64(len(entries)))
		}

		if err := s.records.UpsertKeys(ctx, group.source, batchKeys, time.Now()); err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("record batch: %w", err)
			}
			s.log.Warn("batch records not refreshed",
				zap.String("source", group.source), zap.Error(err))
		}
	}

	if failed > 0 {
		// With a batch missing, untouched records cannot be told apart from
		// truly stale ones, so this run leaves the source's leftovers alone.
		return fmt.Errorf("%d batch(es) failed: %w", failed, firstErr)
	}

	deleted, err := s.cleanupStale(ctx, group.source, existing, runStart, seen)
	if err != nil {
		return err
	}
	summary.ChunksDeleted += deleted

	return nil
}

// cleanupStale removes chunks recorded before this run that no longer exist
// in the document.
func (s *Service) cleanupStale(
	ctx context.Context, source string,
	existing map[string]time.Time, runStart time.Time, seen map[string]bool,
) (int, error) {
	var stale []string
	for key, ts := range existing {
		if seen[key] || !ts.Before(runStart) {
			continue
		}
		stale = append(stale, key)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	sort.Strings(stale)

	deleted, err := s.store.Delete(ctx, stale)
	if err != nil {
		return 0, fmt.Errorf("delete stale chunks: %w", err)
	}
	if err := s.records.DeleteKeys(ctx, source, stale); err != nil {
		return deleted, fmt.Errorf("unrecord stale chunks: %w", err)
	}

	metrics.IndexChunksTotal.WithLabelValues("delete").Add(float64(len(stale)))
	return deleted, nil
}

// Delete removes every chunk of a document and best-effort removes the file
// itself from the document directory. Returns how many vectors and records
// were removed.
func (s *Service) Delete(ctx context.Context, filename string) (int, int, error) {
	if err := validateFilename(filename); err != nil {
		return 0, 0, err
	}

	recorded, err := s.records.ListKeys(ctx, filename)
	if err != nil {
		return 0, 0, err
	}
	stored, err := s.store.ListKeysBySource(ctx, filename)
	if err != nil {
		return 0, 0, err
	}

	keySet := make(map[string]bool, len(recorded)+len(stored))
	for key := range recorded {
		keySet[key] = true
	}
	for _, key := range stored {
		keySet[key] = true
	}
	if len(keySet) == 0 {
		// An uploaded file the indexer has not reached yet still counts as a
		// document; only a name unknown to both the store and the disk is a
		// miss.
		if _, statErr := os.Stat(filepath.Join(s.dataDir, filename)); statErr != nil {
			return 0, 0, fmt.Errorf("document %q: %w", filename, domain.ErrNotFound)
		}
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	vectors, err := s.store.Delete(ctx, keys)
	if err != nil {
		return vectors, 0, fmt.Errorf("delete vectors of %s: %w", filename, err)
	}
	metrics.IndexChunksTotal.WithLabelValues("delete").Add(float64(vectors))

	records, err := s.records.DeleteSource(ctx, filename)
	if err != nil {
		// Vectors are already gone and the next run re-records the source,
		// so a failed record cleanup only gets logged.
		s.log.Warn("failed to delete document records",
			zap.String("file", filename), zap.Error(err))
	}

	if err := os.Remove(filepath.Join(s.dataDir, filename)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove document file", zap.String("file", filename), zap.Error(err))
	}

	s.log.Info("document deleted",
		zap.String("file", filename),
		zap.Int("vectors", vectors),
		zap.Int("records", records))

	return vectors, records, nil
}

// ListDocuments returns the files currently in the document directory along
// with their stored chunk counts.
func (s *Service) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read document directory: %w", err)
	}

	out := make([]DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		chunks, err := s.counter.CountBySource(ctx, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("count chunks of %s: %w", entry.Name(), err)
		}
		indexed, err := s.records.HasSource(ctx, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("check records of %s: %w", entry.Name(), err)
		}

		out = append(out, DocumentInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
			Chunks:   chunks,
			Indexed:  indexed,
		})
	}

	return out, nil
}

// validateFilename rejects names that could escape the document directory.
func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("empty filename: %w", domain.ErrInvalidRequest)
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("filename %q: %w", name, domain.ErrUnsafePath)
	}
	return nil
}

// batches yields non-overlapping sub-slices of at most size elements.
func batches(chunks []domain.Chunk, size int) func(yield func([]domain.Chunk) bool) {
	return func(yield func([]domain.Chunk) bool) {
		for start := 0; start < len(chunks); start += size {
			end := min(start+size, len(chunks))
			if !yield(chunks[start:end]) {
				return
			}
		}
	}
}
