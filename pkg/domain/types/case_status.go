package types

import (
	"fmt"
	"strings"
)

// CaseStatus represents the canonical lifecycle status of a case
type CaseStatus string

const (
	CaseStatusOpen         CaseStatus = "OPEN"
	CaseStatusResolved     CaseStatus = "RESOLVED"
	CaseStatusForRerouting CaseStatus = "FOR_REROUTING"
)

// AllCaseStatuses returns all valid case statuses
func AllCaseStatuses() []CaseStatus {
	return []CaseStatus{
		CaseStatusOpen,
		CaseStatusResolved,
		CaseStatusForRerouting,
	}
}

// IsValid checks if the case status is valid
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusOpen,
		CaseStatusResolved,
		CaseStatusForRerouting:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as CaseStatusOpen.
func (s CaseStatus) Normalize() CaseStatus {
	if s == "" {
		return CaseStatusOpen
	}
	return s
}

// String returns the string representation of the case status
func (s CaseStatus) String() string {
	return string(s)
}

// ParseCaseStatus parses a canonical status name into a CaseStatus
func ParseCaseStatus(s string) (CaseStatus, error) {
	status := CaseStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid case status: %s", s)
	}
	return status, nil
}

// statusVocabulary maps canonicalized external labels to a status. Keys are
// lower case with '_' and '-' folded to spaces.
var statusVocabulary = map[string]CaseStatus{
	"open":                 CaseStatusOpen,
	"in progress":          CaseStatusOpen,
	"pending":              CaseStatusOpen,
	"pending confirmation": CaseStatusOpen,
	"no status yet":        CaseStatusOpen,
	"new":                  CaseStatusOpen,
	"active":               CaseStatusOpen,

	"resolved":  CaseStatusResolved,
	"completed": CaseStatusResolved,
	"closed":    CaseStatusResolved,
	"done":      CaseStatusResolved,
	"fixed":     CaseStatusResolved,

	"for rerouting": CaseStatusForRerouting,
	"rerouting":     CaseStatusForRerouting,
	"reroute":       CaseStatusForRerouting,
	"transferred":   CaseStatusForRerouting,
	"forwarded":     CaseStatusForRerouting,
}

var statusFolder = strings.NewReplacer("_", " ", "-", " ")

// NormalizeCaseStatus maps a free-text status label from any source to a
// CaseStatus. It never fails: unknown and empty labels map to CaseStatusOpen.
func NormalizeCaseStatus(label string) CaseStatus {
	key := strings.ToLower(strings.TrimSpace(statusFolder.Replace(label)))
	key = strings.Join(strings.Fields(key), " ")
	if status, ok := statusVocabulary[key]; ok {
		return status
	}
	return CaseStatusOpen
}
