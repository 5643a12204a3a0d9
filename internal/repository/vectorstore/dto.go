package vectorstore

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
)

// Hash field names, shared between storage and the FT index schema.
const (
	fieldText       = "text"
	fieldVector     = "vector"
	fieldSource     = "source"
	fieldFileType   = "file_type"
	fieldCreatedAt  = "created_at"
	fieldCategory   = "category"
	fieldDepartment = "department"
	fieldPage       = "page"
)

// returnFields are the payload fields requested on retrieval. The vector
// blob itself is never returned.
var returnFields = []string{
	fieldText, fieldSource, fieldFileType, fieldCreatedAt,
	fieldCategory, fieldDepartment, fieldPage, "__vector_score",
}

func hashKey(indexKey string) string {
	return hashPrefix + indexKey
}

func trimHashKey(key string) string {
	return strings.TrimPrefix(key, hashPrefix)
}

func buildFields(e domain.VectorEntry) map[string]string {
	return map[string]string{
		fieldText:       e.Chunk.Text,
		fieldVector:     vectorToBlob(e.Vector),
		fieldSource:     e.Chunk.Meta.Source,
		fieldFileType:   e.Chunk.Meta.FileType,
		fieldCreatedAt:  e.Chunk.Meta.CreatedAt,
		fieldCategory:   e.Chunk.Meta.Category,
		fieldDepartment: e.Chunk.Meta.Department,
		fieldPage:       strconv.Itoa(e.Chunk.Ordinal),
	}
}

func parseRetrieved(entry db.SearchEntry) domain.Retrieved {
	page, _ := strconv.Atoi(entry.Fields[fieldPage])
	return domain.Retrieved{
		Key:     trimHashKey(entry.Key),
		Score:   entry.Score,
		Text:    entry.Fields[fieldText],
		Ordinal: page,
		Meta: domain.Metadata{
			Source:     entry.Fields[fieldSource],
			FileType:   entry.Fields[fieldFileType],
			CreatedAt:  entry.Fields[fieldCreatedAt],
			Category:   entry.Fields[fieldCategory],
			Department: entry.Fields[fieldDepartment],
		},
	}
}

// vectorToBlob encodes a float32 slice as the little-endian byte blob the
// FT vector index expects.
func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
