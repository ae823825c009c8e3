package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow core. Handlers translate these to HTTP
// statuses with errors.Is; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrNotAuthorized: actor is neither the creator (edit path) nor the
	// current approver (approval path).
	ErrNotAuthorized = errors.New("not authorized")

	// ErrCommentRequired: an approval-path action arrived with an empty or
	// whitespace-only comment.
	ErrCommentRequired = errors.New("comment is mandatory")

	// ErrNoApprover: the acting employee has no resolvable manager, so the
	// request cannot be routed. Deliberate hard stop — never left unrouted.
	ErrNoApprover = errors.New("no approver configured")

	// ErrConflict: a concurrent transition won the race; the state no longer
	// matches the precondition this action was based on.
	ErrConflict = errors.New("request was changed by a concurrent action")

	// ErrNotFound: the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation: malformed or missing input.
	ErrValidation = errors.New("validation failed")
)

// AppError carries a machine-readable code alongside the message so API
// clients can branch without parsing text.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps ErrValidation with a human-readable reason.
func NewValidationError(message string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, Err: ErrValidation}
}

// NewStorageError marks a failed relational or blob operation. Not retried by
// the core; surfaced so the caller can decide.
func NewStorageError(op string, err error) *AppError {
	return &AppError{Code: "STORAGE_ERROR", Message: "storage operation failed: " + op, Err: err}
}
