package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates an optional port was not configured.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoProject indicates an operation needs a loaded project.
	ErrNoProject = errors.New("no project loaded")

	// ErrStoreClosed indicates the project store has been closed.
	ErrStoreClosed = errors.New("project store closed")

	// ErrCodecUnavailable indicates a compressed history entry cannot be
	// decoded because no compaction codec is configured.
	ErrCodecUnavailable = errors.New("compaction codec unavailable")

	// History Errors.
	//
	// These are notices rather than failures: the operation was simply not
	// performed and the message may be shown to the user as-is.

	// ErrNothingToUndo indicates the history pointer is at the oldest entry.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the history pointer is at the newest entry.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrRestoreInProgress indicates another undo/redo is still being applied.
	ErrRestoreInProgress = errors.New("history restore in progress, try again")

	// ErrBatchInProgress indicates undo/redo was requested inside a batch.
	ErrBatchInProgress = errors.New("batch update in progress, try again")
)

// IsTransient reports whether err is a busy condition the caller may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRestoreInProgress) || errors.Is(err, ErrBatchInProgress)
}
