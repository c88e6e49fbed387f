package worker

import (
	"context"
	"errors"
	"fmt"
)

// JobHandler runs every job of one type.
type JobHandler interface {
	// Type is the job type this handler accepts, one of the JobType constants.
	Type() string

	// Handle runs one job with its JSON payload. A PermanentError ends the
	// job without retries; any other error is retried up to MaxAttempts.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError is a job failure that retrying cannot fix, such as a bad
// payload or a site that no longer exists.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError marks err as not retryable.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Permanentf formats a non-retryable error. %w verbs wrap as with fmt.Errorf.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
