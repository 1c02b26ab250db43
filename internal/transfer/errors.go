package transfer

import (
	"errors"
	"net/http"

	"github.com/aura-capture/backend/internal/recordings"
)

// Errors surfaced to callers of the engine.
var (
	ErrNotFound       = recordings.ErrNotFound
	ErrMisconfigured  = recordings.ErrMisconfigured
	ErrEmptyPayload   = errors.New("upload payload is empty")
	ErrUploadNotFound = errors.New("holding upload not found")
	ErrMissingUpload  = errors.New("no holding upload registered for recording")
	ErrAlreadyReady   = recordings.ErrAlreadyReady
	// ErrUploadInProgress is returned when another transfer already claimed the recording.
	ErrUploadInProgress = recordings.ErrUploadInProgress
	ErrTransferFailed   = errors.New("transfer failed")
)

// Error wraps a lower-level storage or ledger failure. It matches ErrTransferFailed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "transfer failed: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransferFailed) true for every *Error.
func (e *Error) Is(target error) bool { return target == ErrTransferFailed }

func failed(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// StatusCode maps an engine error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTransferFailed):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMisconfigured), errors.Is(err, ErrEmptyPayload), errors.Is(err, ErrMissingUpload):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyReady), errors.Is(err, ErrUploadInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
