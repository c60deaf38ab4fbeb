package batch

import (
	"errors"
	"fmt"
)

// ErrRootMissing is returned when the input root does not exist or is not a
// directory. It is the only condition that aborts a run.
var ErrRootMissing = errors.New("input root not found")

// Per-file failure causes. They are recorded in the report, never returned
// from Run.
var (
	// ErrDecodeFailed means the file could not be interpreted as a raster image.
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrWriteFailed means the text artifact could not be persisted.
	ErrWriteFailed = errors.New("artifact write failed")
)

// RunError wraps errors with additional context about a failed batch run.
type RunError struct {
	// Op is the operation that failed (e.g., "Run").
	Op string

	// Path is the file or directory involved.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("batch: %s failed: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("batch: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newRunError(op, path string, err error) *RunError {
	return &RunError{Op: op, Path: path, Err: err}
}
