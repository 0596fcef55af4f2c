package dvid

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a render is aborted by its caller before completion.
var ErrCancelled = errors.New("render cancelled")

// ConfigError is a malformed rendering configuration, e.g., a gamma <= 0 or a LUT
// without 256 entries.  It is detected when a binding or chain is built.
type ConfigError struct {
	Msg string
}

// NewConfigError returns a *ConfigError with a formatted message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Msg
}

// PlaneNotFoundError means the requested channel or plane does not exist in the source.
// Channel is -1 if the failure is not specific to a channel.
type PlaneNotFoundError struct {
	Channel int
	Plane   PlaneDef
	Reason  string
}

func (e *PlaneNotFoundError) Error() string {
	if e.Channel < 0 {
		return fmt.Sprintf("plane not found (%s): %s", e.Plane, e.Reason)
	}
	return fmt.Sprintf("plane not found for channel %d (%s): %s", e.Channel, e.Plane, e.Reason)
}

// IOError wraps a failure of a raw source while reading a plane.  It is not retried.
type IOError struct {
	Channel int
	Plane   PlaneDef
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("error reading channel %d (%s): %v", e.Channel, e.Plane, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsPlaneNotFound returns true if err is or wraps a *PlaneNotFoundError.
func IsPlaneNotFound(err error) bool {
	var pe *PlaneNotFoundError
	return errors.As(err, &pe)
}

// IsIOError returns true if err is or wraps an *IOError.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
