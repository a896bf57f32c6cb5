package manager

import "errors"

var (
	// ErrNotReady is returned by mutations before Initialize succeeds or after Close.
	ErrNotReady = errors.New("task list not initialized")
	// ErrNotFound means no record has the given ID.
	ErrNotFound = errors.New("task not found")
	// ErrPersistence means the change could not be saved and was reverted.
	ErrPersistence = errors.New("could not save changes")
	// ErrImportFormat rejects a malformed import payload as a whole.
	ErrImportFormat = errors.New("malformed import payload")
)
