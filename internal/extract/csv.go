package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVExtractor renders each data row as "header: value" lines, with rows
// separated by blank lines, so row fields stay together after chunking.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		var lines []string
		for i, val := range rec {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			lines = append(lines, name+": "+strings.TrimSpace(val))
		}
		rows = append(rows, strings.Join(lines, "\n"))
	}

	out := strings.TrimSpace(strings.Join(rows, "\n\n"))
	if out == "" {
		return nil, nil
	}
	return []Page{{Number: 0, Text: out}}, nil
}
