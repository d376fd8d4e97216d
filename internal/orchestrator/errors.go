package orchestrator

import (
	"errors"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
)

// tooBusyError signals admission timeout for 409 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: a batch is already running" }

// ErrTooBusy constructs the admission timeout error.
func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates another batch holds the slot.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

func invalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// ErrInvalidRequest constructs a validation error for msg.
func ErrInvalidRequest(msg string) error { return invalidRequest(msg) }

// IsInvalidRequest reports whether err was caused by request validation.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e) || errors.Is(err, backend.ErrInvalidInput)
}

// IsModelNotFound covers both catalog misses and packages missing on disk.
func IsModelNotFound(err error) bool {
	return backend.IsModelNotFound(err) || catalog.IsNoModelsFound(err)
}
