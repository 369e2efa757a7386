package interfaces

import (
	"context"

	"github.com/secmon-lab/casesync/pkg/domain/model"
)

// CaseRepository defines the interface for canonical case access
type CaseRepository interface {
	// Get retrieves a case by business key. Returns ErrCaseNotFound if absent.
	Get(ctx context.Context, businessKey string) (*model.Case, error)

	// List retrieves cases with optional filtering, newest first
	List(ctx context.Context, opts ...ListCaseOption) ([]*model.Case, error)

	// Put stores a case, replacing any case with the same business key
	Put(ctx context.Context, c *model.Case) error

	// Delete removes a case. The sync engine never calls it.
	Delete(ctx context.Context, businessKey string) error

	// RunSync runs fn inside one atomic unit of work. Writes staged through tx
	// become visible only when fn returns nil. The store may invoke fn more
	// than once on contention, so fn must not keep state across attempts.
	RunSync(ctx context.Context, fn func(ctx context.Context, tx CaseTransaction) error) error
}

// CaseTransaction is the view of the case store inside RunSync. All reads
// must happen before the first write.
type CaseTransaction interface {
	// GetMany returns the stored cases for keys. Missing keys are absent from the map.
	GetMany(ctx context.Context, keys []string) (map[string]*model.Case, error)

	// Put stages a case to be written on commit
	Put(c *model.Case) error
}
