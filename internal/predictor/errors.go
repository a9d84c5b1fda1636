package predictor

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned when the model handle failed to
// initialise. It is never retried within the life of the process.
var ErrModelUnavailable = errors.New("prediction model unavailable")

// ErrWorkerExited is returned once the model worker process has gone away.
var ErrWorkerExited = errors.New("model worker exited")

var errHandleClosed = errors.New("model handle closed")

// InvocationError wraps any failure raised by the model during inference.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// StatusError represents a non-2xx reply from a remote prediction endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prediction endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}
