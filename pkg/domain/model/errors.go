package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Sentinel errors for synchronization failures
var (
	ErrAuthentication    = goerr.New("source rejected credentials")
	ErrSourceNotFound    = goerr.New("source not found")
	ErrTransport         = goerr.New("source transport failure")
	ErrMapping           = goerr.New("row mapping failed")
	ErrWriteBackMismatch = goerr.New("business key not found in sheet")
	ErrAlreadyRunning    = goerr.New("sync already running")
	ErrCaseNotFound      = goerr.New("case not found")
	ErrSourceNotEnabled  = goerr.New("source not configured")
)

// Context keys for error values
const (
	BusinessKeyKey = "business_key"
	SourceKey      = "source"
	RowKey         = "row"
	StatusCodeKey  = "status_code"
	URLKey         = "url"
	RangeKey       = "range"
)

// FailureCategory classifies a run or write-back failure for operators
type FailureCategory string

const (
	FailureAuthentication    FailureCategory = "authentication"
	FailureNotFound          FailureCategory = "not_found"
	FailureTransport         FailureCategory = "transport"
	FailureMapping           FailureCategory = "mapping"
	FailureWriteBackMismatch FailureCategory = "write_back_mismatch"
	FailureAlreadyRunning    FailureCategory = "already_running"
	FailureInternal          FailureCategory = "internal"
)

// FailureCategoryOf returns the category of err, or "" for nil.
func FailureCategoryOf(err error) FailureCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return FailureAuthentication
	case errors.Is(err, ErrSourceNotFound):
		return FailureNotFound
	case errors.Is(err, ErrTransport):
		return FailureTransport
	case errors.Is(err, ErrMapping):
		return FailureMapping
	case errors.Is(err, ErrWriteBackMismatch):
		return FailureWriteBackMismatch
	case errors.Is(err, ErrAlreadyRunning):
		return FailureAlreadyRunning
	default:
		return FailureInternal
	}
}

// NeedsOperator reports whether the failure cannot heal without a human
// fixing credentials or source configuration.
func (c FailureCategory) NeedsOperator() bool {
	return c == FailureAuthentication || c == FailureNotFound
}
