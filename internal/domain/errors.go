package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations
var (
	// ErrCatalogUnavailable indicates the server or image listing failed
	ErrCatalogUnavailable = errors.New("catalog is unavailable")

	// ErrDuplicateInQueue indicates a download for the same filename is already active
	ErrDuplicateInQueue = errors.New("file is already queued or downloading")

	// ErrDownloadCancelled indicates the task was cancelled before it finished
	ErrDownloadCancelled = errors.New("download was cancelled")

	// ErrUnknownFilter indicates a filter key outside systemType/language/bootMode
	ErrUnknownFilter = errors.New("unknown filter key")

	// ErrServerNotFound indicates the requested server is not in the catalog
	ErrServerNotFound = errors.New("server not found")

	// ErrImageNotFound indicates the requested image is not in the current view
	ErrImageNotFound = errors.New("image not found")

	// ErrFileExists indicates the download target already exists on disk
	ErrFileExists = errors.New("file already exists")

	// ErrLocalImageNotFound indicates no such image file in the download directory
	ErrLocalImageNotFound = errors.New("local image not found")

	// ErrInvalidSetting indicates a preference key or value was rejected
	ErrInvalidSetting = errors.New("invalid setting")
)

// TransferError describes a failed download attempt. Reason is what gets
// recorded in history.
type TransferError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s failed: %s", e.Filename, e.Reason)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError wraps err as a TransferError for filename
func NewTransferError(filename string, err error) *TransferError {
	var te *TransferError
	if errors.As(err, &te) {
		return te
	}
	return &TransferError{Filename: filename, Reason: err.Error(), Err: err}
}
