package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// SyncRunID is a UUID-based identifier for SyncRun
type SyncRunID string

// NewSyncRunID generates a new UUID v4 SyncRunID
func NewSyncRunID() SyncRunID {
	return SyncRunID(uuid.New().String())
}

// RowError records a row-scoped failure that did not abort the run
type RowError struct {
	Row         int    `json:"row"`
	Locator     string `json:"locator,omitempty"`
	BusinessKey string `json:"business_key,omitempty"`
	Message     string `json:"message"`
}

func (e RowError) String() string {
	if e.Locator != "" {
		return fmt.Sprintf("row %d (%s): %s", e.Row, e.Locator, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// RunStats counts the outcome of every row in one run
type RunStats struct {
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Skipped    int        `json:"skipped"`
	Duplicates int        `json:"duplicates"`
	Errored    int        `json:"errored"`
	Errors     []RowError `json:"errors"`
}

// AddError records a row failure
func (s *RunStats) AddError(e RowError) {
	s.Errored++
	s.Errors = append(s.Errors, e)
}

// SyncRun is the record of one reconciliation run
type SyncRun struct {
	ID              SyncRunID        `json:"id"`
	Source          types.SourceType `json:"source"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Outcome         types.RunOutcome `json:"outcome"`
	FailureCategory FailureCategory  `json:"failure_category,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	Stats           RunStats         `json:"stats"`
}

// Succeeded reports whether the run committed
func (r *SyncRun) Succeeded() bool {
	return r != nil && r.Outcome == types.RunOutcomeSucceeded
}

// Copy returns a deep copy of r
func (r *SyncRun) Copy() *SyncRun {
	if r == nil {
		return nil
	}
	copied := *r
	if r.Stats.Errors != nil {
		copied.Stats.Errors = make([]RowError, len(r.Stats.Errors))
		copy(copied.Stats.Errors, r.Stats.Errors)
	}
	return &copied
}

// SourceStatus is the externally visible sync state of one source
type SourceStatus struct {
	Source     types.SourceType `json:"source"`
	Configured bool             `json:"configured"`
	Scheduled  bool             `json:"scheduled"`
	Running    bool             `json:"running"`
	Interval   time.Duration    `json:"-"`
	LastRunAt  *time.Time       `json:"last_run_at"`
	LastRun    *SyncRun         `json:"last_run"`
}
