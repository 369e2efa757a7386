package types

import "fmt"

// SourceType identifies an external case source
type SourceType string

const (
	SourceTypeSheet     SourceType = "sheet"
	SourceTypeReportAPI SourceType = "report_api"
	SourceTypeWorkbook  SourceType = "workbook"
)

// AllSourceTypes returns all known source types
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeSheet,
		SourceTypeReportAPI,
		SourceTypeWorkbook,
	}
}

func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeSheet, SourceTypeReportAPI, SourceTypeWorkbook:
		return true
	default:
		return false
	}
}

func (s SourceType) String() string {
	return string(s)
}

// ParseSourceType parses a string into a SourceType
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid source type: %s", s)
	}
	return st, nil
}
