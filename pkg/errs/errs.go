// Package errs holds the error classes surfaced by the iidc packages.
//
// Callers match them with errors.Is; every error returned by the library
// wraps exactly one of these.
package errs

import "errors"

var (
	// ErrFailure is the generic failure class.
	ErrFailure = errors.New("iidc: failure")

	// ErrNotSupported indicates the platform or driver cannot perform the
	// operation. It is not a resource failure and is never retried.
	ErrNotSupported = errors.New("iidc: operation not supported")

	// ErrNoChannel indicates none of the allowed isochronous channels is free.
	ErrNoChannel = errors.New("iidc: no channel available")

	// ErrInsufficientBandwidth indicates the bus cannot grant the requested
	// isochronous bandwidth.
	ErrInsufficientBandwidth = errors.New("iidc: insufficient bandwidth")

	// ErrInvalidParameter indicates a mode, channel or value outside its
	// defined range.
	ErrInvalidParameter = errors.New("iidc: invalid parameter")

	// ErrProtocolViolation is raised when the camera sets error flag 1 after
	// a value commit: the position, size, color coding, speed and packet size
	// combination is invalid.
	ErrProtocolViolation = errors.New("iidc: invalid position, size, color coding, speed or packet size")

	// ErrInvalidPacketSize is raised when the camera sets error flag 2 after a
	// packet size commit.
	ErrInvalidPacketSize = errors.New("iidc: invalid bytes per packet")

	// ErrNoMemory indicates host memory could not be allocated.
	ErrNoMemory = errors.New("iidc: memory allocation failure")

	// ErrTimeout indicates a register transaction or wait did not complete in
	// time.
	ErrTimeout = errors.New("iidc: timeout")

	// ErrHandshakeTimeout indicates the camera never cleared the value setting
	// bit. It also matches ErrTimeout.
	ErrHandshakeTimeout error = &timeoutError{msg: "iidc: value setting handshake timed out"}
)

type timeoutError struct {
	msg string
}

func (e *timeoutError) Error() string { return e.msg }

func (e *timeoutError) Is(target error) bool { return target == ErrTimeout }
