package model

import "github.com/secmon-lab/casesync/pkg/domain/types"

// RawRow is one untyped row as fetched from a source. Cell values are strings,
// or time.Time where the source carries a structured timestamp.
type RawRow struct {
	// Row is the 1-based position within the batch
	Row     int
	Locator string
	Cells   map[string]any
}

// RawBatch is the full result of one fetch from a source
type RawBatch struct {
	Source  types.SourceType
	Headers []string
	Aliases ColumnAliases
	Rows    []RawRow
}

// ZipRow pairs a positional row with headers. Short rows are right-padded
// with empty cells; cells beyond the last header are dropped.
func ZipRow(headers []string, values []string) map[string]any {
	cells := make(map[string]any, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		if _, dup := cells[h]; dup {
			continue
		}
		cells[h] = v
	}
	return cells
}
