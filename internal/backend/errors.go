package backend

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Generate when the progress callback stopped it.
var ErrCancelled = errors.New("generation cancelled")

// IsCancelled reports whether err means cooperative cancellation.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

type modelNotFoundError struct{ path string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.path }

// ErrModelNotFound reports that a model package vanished before it could be loaded.
func ErrModelNotFound(path string) error { return modelNotFoundError{path: path} }

// IsModelNotFound reports whether err indicates a missing model package.
func IsModelNotFound(err error) bool {
	var target modelNotFoundError
	return errors.As(err, &target)
}

type loadFailureError struct {
	model string
	err   error
}

func (e loadFailureError) Error() string {
	return fmt.Sprintf("load %s: %v", e.model, e.err)
}

func (e loadFailureError) Unwrap() error { return e.err }

// IsLoadFailure reports whether err came from a malformed or incompatible package.
func IsLoadFailure(err error) bool {
	var target loadFailureError
	return errors.As(err, &target)
}

type pipelineNotLoadedError struct{ kind Kind }

func (e pipelineNotLoadedError) Error() string { return e.kind.String() + " pipeline not loaded" }

// IsPipelineNotLoaded reports a Generate/Prepare call before a successful Load.
func IsPipelineNotLoaded(err error) bool {
	var target pipelineNotLoadedError
	return errors.As(err, &target)
}

type generationFailureError struct{ err error }

func (e generationFailureError) Error() string { return "generation failed: " + e.err.Error() }

func (e generationFailureError) Unwrap() error { return e.err }

// IsGenerationFailure reports whether the inference call itself failed.
func IsGenerationFailure(err error) bool {
	var target generationFailureError
	return errors.As(err, &target)
}

type unsupportedSchedulerError struct {
	scheduler Scheduler
	kind      Kind
}

func (e unsupportedSchedulerError) Error() string {
	return fmt.Sprintf("unsupported scheduler for backend: %q is not available on the %s backend", e.scheduler, e.kind)
}

// IsUnsupportedScheduler reports a scheduler/backend mismatch.
func IsUnsupportedScheduler(err error) bool {
	var target unsupportedSchedulerError
	return errors.As(err, &target)
}

// dependencyUnavailableError signals that no inference runtime is available
// for a backend family.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	var target dependencyUnavailableError
	return errors.As(err, &target)
}

// ErrInvalidInput marks parameters the selected backend cannot accept.
var ErrInvalidInput = errors.New("invalid generation input")
