// Package apperr defines the sentinel error taxonomy shared across the
// engine, store and HTTP layer. Callers match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means the referenced entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means an illegal lifecycle transition was requested.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation means a malformed rule or profile configuration.
	ErrValidation = errors.New("validation error")
	// ErrDuplicate means the idempotence key already exists. Generation
	// folds it into skipped counts instead of surfacing it.
	ErrDuplicate = errors.New("duplicate")
	// ErrAttachment means the document store rejected or lost a file.
	ErrAttachment = errors.New("attachment error")
	// ErrDispatch means the mail transport failed.
	ErrDispatch = errors.New("dispatch error")
)
