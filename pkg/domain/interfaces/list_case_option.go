package interfaces

import "github.com/secmon-lab/casesync/pkg/domain/types"

// ListCaseOption is a functional option for filtering cases in List
type ListCaseOption func(*listCaseConfig)

type listCaseConfig struct {
	status *types.CaseStatus
	source *types.SourceType
	limit  int
}

// WithStatus filters cases by status
func WithStatus(status types.CaseStatus) ListCaseOption {
	return func(c *listCaseConfig) {
		c.status = &status
	}
}

// WithSource filters cases by the source of their last sync
func WithSource(source types.SourceType) ListCaseOption {
	return func(c *listCaseConfig) {
		c.source = &source
	}
}

// WithLimit caps the number of returned cases. Zero means no limit.
func WithLimit(n int) ListCaseOption {
	return func(c *listCaseConfig) {
		c.limit = n
	}
}

// BuildListCaseConfig builds a listCaseConfig from options
func BuildListCaseConfig(opts ...ListCaseOption) *listCaseConfig {
	cfg := &listCaseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Status returns the status filter value, or nil if not set
func (c *listCaseConfig) Status() *types.CaseStatus {
	return c.status
}

// Source returns the source filter value, or nil if not set
func (c *listCaseConfig) Source() *types.SourceType {
	return c.source
}

// Limit returns the result cap, zero for none
func (c *listCaseConfig) Limit() int {
	return c.limit
}
