package extract

import (
	"fmt"
	"os"
	"strings"
)

// TextExtractor reads plain text files as a single page.
type TextExtractor struct{}

func (e *TextExtractor) Extract(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}

	return []Page{{Number: 0, Text: text}}, nil
}
