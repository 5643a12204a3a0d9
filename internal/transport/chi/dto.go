package chi

import (
	"github.com/kailas-cloud/docrag/internal/domain"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/docrag/internal/usecase/indexing"
)

// sseDone terminates a server-sent event stream.
const sseDone = "[DONE]"

type errorCode string

const (
	errorCodeBadRequest             errorCode = "bad_request"
	errorCodeValidationFailed       errorCode = "validation_failed"
	errorCodeUnsafePath             errorCode = "unsafe_path"
	errorCodeDocumentNotFound       errorCode = "document_not_found"
	errorCodeEmbeddingProviderError errorCode = "embedding_provider_error"
	errorCodeGenerationFailed       errorCode = "generation_failed"
	errorCodeInternalError          errorCode = "internal_error"
)

const (
	triggerStatusAccepted      = "accepted"
	triggerStatusAlreadyQueued = "already_queued"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type indexRequest struct {
	Directory string `json:"directory,omitempty"`
}

type triggerResponse struct {
	Status string `json:"status"`
}

type uploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type documentListResponse struct {
	Items []indexinguc.DocumentInfo `json:"items"`
	Total int                       `json:"total"`
}

type deleteResponse struct {
	Name           string `json:"name"`
	DeletedVectors int    `json:"deleted_vectors"`
	DeletedRecords int    `json:"deleted_records"`
}

type queryRequest struct {
	Question string         `json:"question"`
	K        int            `json:"k,omitempty"`
	Filters  map[string]any `json:"metadata_filter,omitempty"`
}

type retrievedChunk struct {
	Source     string  `json:"source"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	FileType   string  `json:"file_type,omitempty"`
	Category   string  `json:"category,omitempty"`
	Department string  `json:"department,omitempty"`
}

type retrieveResponse struct {
	Items []retrievedChunk `json:"items"`
	Total int              `json:"total"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

func retrievedToDTO(r *domain.Retrieved) retrievedChunk {
	return retrievedChunk{
		Source:     r.Meta.Source,
		Page:       r.Ordinal,
		Score:      r.Score,
		Text:       r.Text,
		FileType:   r.Meta.FileType,
		Category:   r.Meta.Category,
		Department: r.Meta.Department,
	}
}
