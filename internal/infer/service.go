// Package infer classifies documents into category and owning department
// using a chat completion model.
package infer

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// Generator produces a chat completion for a system/user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Categories the classifier may return. Anything else collapses to the default.
var allowedCategories = map[string]bool{
	"policy":    true,
	"manual":    true,
	"guideline": true,
	"FAQ":       true,
	"report":    true,
	"minutes":   true,
	"notice":    true,
	"other":     true,
}

const classifyPrompt = `You are a document classifier. Given an excerpt of a company document, respond with a JSON object with exactly two fields:
"category": one of "policy", "manual", "guideline", "FAQ", "report", "minutes", "notice", "other"
"department": the department most likely to own this document, e.g. "HR", "Finance", "Engineering", "Legal", "General"
Respond with JSON only, no explanations.`

// maxExcerptRunes limits how much of the document is sent to the model.
const maxExcerptRunes = 2000

// Service infers document metadata. Classification is best-effort: any
// failure falls back to default values instead of failing indexing.
type Service struct {
	gen Generator
	log *zap.Logger
}

func New(gen Generator, log *zap.Logger) *Service {
	return &Service{gen: gen, log: log}
}

// Classify returns (category, department) for the document text. It never
// returns an error: on model failure or unparseable output it returns the
// defaults and logs the cause.
func (s *Service) Classify(ctx context.Context, text string) (string, string) {
	excerpt := text
	if runes := []rune(excerpt); len(runes) > maxExcerptRunes {
		excerpt = string(runes[:maxExcerptRunes])
	}

	raw, err := s.gen.Complete(ctx, classifyPrompt, excerpt)
	if err != nil {
		s.log.Warn("metadata classification failed, using defaults", zap.Error(err))
		return domain.DefaultCategory, domain.DefaultDepartment
	}

	category, department, err := parseClassification(raw)
	if err != nil {
		s.log.Warn("unparseable classification response, using defaults",
			zap.Error(err), zap.String("response", truncate(raw, 200)))
		return domain.DefaultCategory, domain.DefaultDepartment
	}
	return category, department
}

func parseClassification(raw string) (string, string, error) {
	cleaned := stripFences(raw)

	var out struct {
		Category   string `json:"category"`
		Department string `json:"department"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return "", "", err
	}

	category := strings.TrimSpace(out.Category)
	if !allowedCategories[category] {
		category = domain.DefaultCategory
	}

	department := strings.TrimSpace(out.Department)
	if department == "" {
		department = domain.DefaultDepartment
	}

	return category, department, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, that chat models often wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		firstLine := strings.TrimSpace(s[:i])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
