package interfaces

import (
	"context"

	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// CaseSource fetches one complete batch of raw rows from an external system.
// Failures are classified with model.ErrAuthentication, model.ErrSourceNotFound
// or model.ErrTransport.
type CaseSource interface {
	Type() types.SourceType
	FetchBatch(ctx context.Context) (*model.RawBatch, error)
}

// SheetWriter pushes locally edited fields back to the spreadsheet source
type SheetWriter interface {
	Push(ctx context.Context, change model.WriteBackChange) error
}
