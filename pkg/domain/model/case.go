package model

import (
	"time"

	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// Default values applied to a newly mapped case when the source omits the field
const (
	DefaultCategory    = "Uncategorized"
	DefaultLocation    = "Unknown"
	DefaultSubLocation = "Unknown"
	DefaultDescription = "No description provided"
)

// MaxBusinessKeyLength bounds the external control number
const MaxBusinessKeyLength = 50

// Case is the canonical case record. BusinessKey is the sole reconciliation key.
type Case struct {
	BusinessKey         string           `json:"business_key"`
	Category            string           `json:"category"`
	RefinedCategory     string           `json:"refined_category,omitempty"`
	Location            string           `json:"location"`
	SubLocation         string           `json:"sub_location"`
	Description         string           `json:"description"`
	CreatedAt           time.Time        `json:"created_at"`
	Status              types.CaseStatus `json:"status"`
	AssignedCluster     string           `json:"assigned_cluster,omitempty"`
	AssignedOffice      string           `json:"assigned_office,omitempty"`
	ExternalStatusLabel string           `json:"external_status_label,omitempty"`
	ResponseMessage     *string          `json:"response_message"`
	ReporterName        string           `json:"reporter_name,omitempty"`
	ReporterContact     string           `json:"reporter_contact,omitempty"`
	MediaURLs           string           `json:"media_urls,omitempty"`
	ExternalLink        string           `json:"external_link,omitempty"`

	Source       types.SourceType `json:"source,omitempty"`
	LastSyncedAt time.Time        `json:"last_synced_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Copy returns a deep copy of c
func (c *Case) Copy() *Case {
	if c == nil {
		return nil
	}
	copied := *c
	if c.ResponseMessage != nil {
		msg := *c.ResponseMessage
		copied.ResponseMessage = &msg
	}
	return &copied
}

// CaseRecord is a case freshly mapped from one source row. Supplied holds the
// fields the source actually provided; the rest of Values carries defaults.
type CaseRecord struct {
	Values   Case
	Supplied types.CaseFieldSet
	// Row is the 1-based position of the originating row within its batch
	Row int
	// Locator points back to the row in the source, e.g. "Main!A12"
	Locator string
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
