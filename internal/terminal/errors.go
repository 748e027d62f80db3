// internal/terminal/errors.go
package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send when no link is open
	ErrNotOpen = errors.New("serial port not open")
	// ErrEmptyPayload is returned by Send when the input encodes to zero bytes
	ErrEmptyPayload = errors.New("nothing to send")
	// ErrOpenAborted is returned by Open when Close was called while the port
	// was being acquired
	ErrOpenAborted = errors.New("serial port closed while opening")
)

// OpenFailure classifies why a port could not be acquired
type OpenFailure string

const (
	OpenBusy             OpenFailure = "busy"
	OpenNotFound         OpenFailure = "not_found"
	OpenPermissionDenied OpenFailure = "permission_denied"
	OpenInvalidConfig    OpenFailure = "invalid_config"
	OpenUnknown          OpenFailure = "unknown"
)

// OpenError is returned when a port cannot be acquired. The connection stays
// closed.
type OpenError struct {
	Port   string
	Reason OpenFailure
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open serial port %s (%s): %v", e.Port, e.Reason, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// CloseError is returned when releasing the port failed. The connection is
// closed regardless.
type CloseError struct {
	Port string
	Err  error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("failed to close serial port %s: %v", e.Port, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// SendError is returned when writing to the port failed. The link is torn
// down as if the receive side had failed.
type SendError struct {
	Port string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to write to serial port %s: %v", e.Port, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// LinkError records an I/O failure that ended an open link
type LinkError struct {
	Port string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("serial link %s lost: %v", e.Port, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

func asOpenError(port string, err error) *OpenError {
	var openErr *OpenError
	if errors.As(err, &openErr) {
		return openErr
	}
	return &OpenError{Port: port, Reason: OpenUnknown, Err: err}
}
