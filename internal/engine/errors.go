package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the backend's client library or storage driver
	// cannot be used in this build or environment.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrDisabled means the backend is switched off in configuration.
	ErrDisabled = errors.New("engine disabled")

	// ErrMisconfigured means the backend is enabled but its configuration
	// is incomplete, e.g. no addresses for a remote backend.
	ErrMisconfigured = errors.New("engine misconfigured")

	// ErrUnhealthy means the backend's health probe failed.
	ErrUnhealthy = errors.New("engine unhealthy")
)

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Engine Type
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
