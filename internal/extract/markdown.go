package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor parses markdown and flattens the AST into plain text,
// keeping headings and code blocks as paragraph-separated blocks.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown file: %w", err)
	}

	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block := renderBlock(node, reader.Source())
		if block != "" {
			blocks = append(blocks, block)
		}
	}

	out := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if out == "" {
		return nil, nil
	}
	return []Page{{Number: 0, Text: out}}, nil
}

func renderBlock(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return rawLines(n, source)
	case *ast.List:
		var items []string
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if txt := flattenText(item, source); txt != "" {
				items = append(items, "- "+txt)
			}
		}
		return strings.Join(items, "\n")
	default:
		return flattenText(node, source)
	}
}

func rawLines(node ast.Node, source []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// flattenText collects the text content of a node and its inline children.
func flattenText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.AutoLink:
			sb.Write(t.URL(source))
		case *ast.CodeSpan:
			// inline code keeps its literal text via child Text nodes
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
