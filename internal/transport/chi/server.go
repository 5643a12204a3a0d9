package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/filter"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/docrag/internal/usecase/indexing"
	queryuc "github.com/kailas-cloud/docrag/internal/usecase/query"
)

const maxUploadBytes = 32 << 20

// Indexer triggers and inspects indexing runs.
type Indexer interface {
	Trigger(trigger, dir string) bool
	Delete(ctx context.Context, filename string) (int, int, error)
	ListDocuments(ctx context.Context) ([]indexinguc.DocumentInfo, error)
}

// Answerer retrieves context chunks and streams grounded answers.
type Answerer interface {
	Retrieve(ctx context.Context, req queryuc.Request) ([]domain.Retrieved, error)
	Stream(ctx context.Context, req queryuc.Request) (<-chan string, error)
}

// HealthReporter aggregates component health checks.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// FileTypeChecker decides whether an uploaded file can be indexed.
type FileTypeChecker interface {
	Supported(path string) bool
	Extensions() []string
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the document and query API over chi.
type Server struct {
	indexer       Indexer
	answerer      Answerer
	health        HealthReporter
	fileTypes     FileTypeChecker
	dataDir       string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	indexer Indexer,
	answerer Answerer,
	health HealthReporter,
	fileTypes FileTypeChecker,
	dataDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		indexer:   indexer,
		answerer:  answerer,
		health:    health,
		fileTypes: fileTypes,
		dataDir:   dataDir,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsafePath, http.StatusBadRequest, errorCodeUnsafePath),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, errorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, errorCodeDocumentNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, errorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, errorCodeGenerationFailed),
	}
	return s
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/index", s.TriggerIndex)
		r.Post("/upload", s.UploadDocument)
		r.Get("/documents", s.ListDocuments)
		r.Delete("/documents/{filename}", s.DeleteDocument)
		r.Post("/query", s.Query)
		r.Post("/retrieve", s.Retrieve)
	})
}

// TriggerIndex handles POST /v1/index. The optional body selects an alternate
// directory to index. The run happens asynchronously; a second trigger while
// one is already queued is reported, not an error.
func (s *Server) TriggerIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errorCodeBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	queued := s.indexer.Trigger("api", req.Directory)

	status := triggerStatusAccepted
	if !queued {
		status = triggerStatusAlreadyQueued
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Status: status})
}

// UploadDocument handles POST /v1/upload. The file lands in the document
// directory and an indexing run is queued for it.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCodeBadRequest, "multipart field 'file' is required: "+err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(strings.TrimSpace(header.Filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, errorCodeUnsafePath, "invalid file name")
		return
	}
	if !s.fileTypes.Supported(name) {
		writeError(w, http.StatusBadRequest, errorCodeValidationFailed,
			fmt.Sprintf("unsupported file type, expected one of %s", strings.Join(s.fileTypes.Extensions(), ", ")))
		return
	}

	size, err := s.saveUpload(name, file)
	if err != nil {
		s.logger.Error("save upload", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorCodeInternalError, "failed to store file")
		return
	}

	status := triggerStatusAccepted
	if !s.indexer.Trigger("upload", "") {
		status = triggerStatusAlreadyQueued
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Status:   status,
		Filename: name,
		Size:     size,
	})
}

func (s *Server) saveUpload(name string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(filepath.Join(s.dataDir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

// ListDocuments handles GET /v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.indexer.ListDocuments(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if docs == nil {
		docs = []indexinguc.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: docs, Total: len(docs)})
}

// DeleteDocument handles DELETE /v1/documents/{filename}. It removes the
// file, its vectors, and its index records.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	vectors, records, err := s.indexer.Delete(r.Context(), filename)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Name:           filename,
		DeletedVectors: vectors,
		DeletedRecords: records,
	})
}

// Retrieve handles POST /v1/retrieve: top-k context chunks without an answer.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	results, err := s.answerer.Retrieve(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]retrievedChunk, len(results))
	for i := range results {
		items[i] = retrievedToDTO(&results[i])
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Items: items, Total: len(items)})
}

// Query handles POST /v1/query. The answer is streamed as server-sent
// events, one data event per text fragment, terminated by [DONE].
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	fragments, err := s.answerer.Stream(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("response writer does not support streaming")
		writeError(w, http.StatusInternalServerError, errorCodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for frag := range fragments {
		writeSSE(w, frag)
		flusher.Flush()
	}
	writeSSE(w, sseDone)
	flusher.Flush()
}

func (s *Server) decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryuc.Request, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorCodeBadRequest, "Invalid request body: "+err.Error())
		return queryuc.Request{}, false
	}

	filters, err := filter.FromMap(req.Filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCodeValidationFailed, "parse filters: "+err.Error())
		return queryuc.Request{}, false
	}

	return queryuc.Request{
		Question: req.Question,
		TopK:     req.K,
		Filters:  filters,
	}, true
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeSSE(w io.Writer, data string) {
	// SSE data must not contain raw newlines; split into multiple data
	// lines of the same event so the client reassembles them.
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrUnsafePath,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, errorCodeInternalError, "internal error")
}
