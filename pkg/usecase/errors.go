package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrEmptyEdit      = errors.New("edit changes nothing")
	ErrNoWriteBack    = errors.New("write-back target not configured")
	ErrInvalidColumns = errors.New("invalid write-back columns")
)

// Context keys for error values
const (
	RowKey   = "row"
	RunIDKey = "run_id"
	TabKey   = "tab"
)
