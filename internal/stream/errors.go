package stream

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// Error codes carried by Error.Code.
const (
	CodeUnavailable    = "unavailable"
	CodeArgument       = "argument_error"
	CodeNotImplemented = "not_implemented"
)

// Error is a stream-facing failure. It travels both as a terminal item on a
// stream (through Sink.Error) and as a returned error.
type Error struct {
	Code    string
	Message string
	Details any

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return e.Code + ": " + e.Message
}

// Is matches any *Error with the same code, so errors.Is(err,
// ErrSensorUnavailable) holds for every unavailable error whatever its
// message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrSensorUnavailable = &Error{Code: CodeUnavailable, Message: "sensor not available"}
	ErrArgument          = &Error{Code: CodeArgument, Message: "Invalid arguments"}
	ErrNotImplemented    = &Error{Code: CodeNotImplemented, Message: "method not implemented"}

	ErrUnknownStream    = errors.New("stream: unknown stream id")
	ErrAlreadyListening = errors.New("stream: already listening")
)

func unavailable(t sensors.Type, cause error) *Error {
	e := &Error{Code: CodeUnavailable, Message: fmt.Sprintf("Sensor %d not available", int(t)), Err: cause}
	if cause != nil && !errors.Is(cause, sensors.ErrNoSensor) {
		e.Details = cause.Error()
	}
	return e
}

func argumentError(cause error, details any) *Error {
	return &Error{Code: CodeArgument, Message: "Invalid arguments", Details: details, Err: cause}
}
