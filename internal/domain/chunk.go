package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyPrefix namespaces every redis key owned by this service.
const KeyPrefix = "docrag:"

// Default classification values used when metadata inference is disabled or fails.
const (
	DefaultCategory   = "other"
	DefaultDepartment = "General"
)

// Metadata is the per-chunk metadata attached during loading.
// Source is always the bare filename of the originating document and is never empty.
type Metadata struct {
	Source     string
	FileType   string
	CreatedAt  string // document mtime, ISO-8601
	Category   string
	Department string
}

// Chunk is a bounded text span plus metadata; the unit of embedding and retrieval.
type Chunk struct {
	Text    string
	Ordinal int // page for paginated formats, 0 otherwise
	Meta    Metadata
}

// Key returns the deterministic index key for this chunk.
func (c Chunk) Key() string {
	return IndexKey(c.Meta.Source, c.Text)
}

// IndexKey derives a stable identifier from chunk content and source.
// Unchanged content under the same source yields the same key across runs;
// identical content under different sources yields distinct keys.
func IndexKey(source, text string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// VectorEntry is a chunk ready for vector storage: key, embedding, and payload.
type VectorEntry struct {
	Key    string
	Vector []float32
	Chunk  Chunk
}

// Retrieved is a chunk returned by similarity search, ranked by score.
type Retrieved struct {
	Key     string
	Score   float64
	Text    string
	Ordinal int
	Meta    Metadata
}
