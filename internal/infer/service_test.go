package infer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response string
	err      error
	lastUser string
}

func (g *stubGenerator) Complete(_ context.Context, _, user string) (string, error) {
	g.lastUser = user
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func TestClassify_PlainJSON(t *testing.T) {
	gen := &stubGenerator{response: `{"category": "policy", "department": "HR"}`}
	svc := New(gen, zap.NewNop())

	category, department := svc.Classify(context.Background(), "employee handbook")
	if category != "policy" || department != "HR" {
		t.Errorf("got (%q, %q), want (policy, HR)", category, department)
	}
}

func TestClassify_FencedJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"json fence", "```json\n{\"category\": \"report\", \"department\": \"Finance\"}\n```"},
		{"bare fence", "```\n{\"category\": \"report\", \"department\": \"Finance\"}\n```"},
		{"uppercase tag", "```JSON\n{\"category\": \"report\", \"department\": \"Finance\"}\n```"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&stubGenerator{response: tc.response}, zap.NewNop())
			category, department := svc.Classify(context.Background(), "quarterly numbers")
			if category != "report" || department != "Finance" {
				t.Errorf("got (%q, %q), want (report, Finance)", category, department)
			}
		})
	}
}

func TestClassify_GeneratorError(t *testing.T) {
	svc := New(&stubGenerator{err: errors.New("rate limited")}, zap.NewNop())

	category, department := svc.Classify(context.Background(), "some text")
	if category != "other" || department != "General" {
		t.Errorf("got (%q, %q), want defaults (other, General)", category, department)
	}
}

func TestClassify_UnparseableResponse(t *testing.T) {
	svc := New(&stubGenerator{response: "This document seems to be a policy."}, zap.NewNop())

	category, department := svc.Classify(context.Background(), "some text")
	if category != "other" || department != "General" {
		t.Errorf("got (%q, %q), want defaults (other, General)", category, department)
	}
}

func TestClassify_UnknownCategoryCollapses(t *testing.T) {
	svc := New(&stubGenerator{response: `{"category": "contract", "department": "Legal"}`}, zap.NewNop())

	category, department := svc.Classify(context.Background(), "nda text")
	if category != "other" {
		t.Errorf("expected unknown category to collapse to other, got %q", category)
	}
	if department != "Legal" {
		t.Errorf("expected department preserved, got %q", department)
	}
}

func TestClassify_EmptyDepartmentDefaults(t *testing.T) {
	svc := New(&stubGenerator{response: `{"category": "FAQ", "department": ""}`}, zap.NewNop())

	category, department := svc.Classify(context.Background(), "questions")
	if category != "FAQ" || department != "General" {
		t.Errorf("got (%q, %q), want (FAQ, General)", category, department)
	}
}

func TestClassify_TruncatesLongExcerpt(t *testing.T) {
	gen := &stubGenerator{response: `{"category": "manual", "department": "Engineering"}`}
	svc := New(gen, zap.NewNop())

	svc.Classify(context.Background(), strings.Repeat("x", 5000))
	if got := len([]rune(gen.lastUser)); got != maxExcerptRunes {
		t.Errorf("expected excerpt of %d runes sent to model, got %d", maxExcerptRunes, got)
	}
}
