package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine's registration and scheduling
// surface. Dispatch-time failures are wrapped in DispatchError instead.
var (
	// ErrLoopClosed is returned when work is submitted to a loop that is
	// draining or stopped.
	ErrLoopClosed = errors.New("engine: loop closed")

	// ErrNotFound is returned when a handle does not resolve to a pending
	// callback. Unregistering an unknown handle is NOT an error; this is
	// only surfaced by lookups that need to distinguish the case.
	ErrNotFound = errors.New("engine: callback not found")

	// ErrOnLoop is returned by blocking wrappers that would deadlock if
	// invoked from the engine-loop goroutine itself.
	ErrOnLoop = errors.New("engine: blocking call on loop goroutine")
)

// RegistrationError is surfaced synchronously to the caller at the
// registration call site (bad delay value, non-callable callback, unknown
// verb or op). It is never deferred to dispatch time.
type RegistrationError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Message == "" {
		return "registration error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

func registrationErrorf(format string, args ...any) error {
	return &RegistrationError{Message: fmt.Sprintf(format, args...)}
}

// DispatchError wraps a failure raised inside a fired callback. It is caught
// at the single dispatch boundary in the engine loop, logged with full
// context, and never propagated up to crash the loop.
type DispatchError struct {
	Cause  error
	Handle Handle
	Kind   Kind
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("engine: dispatch of %s callback %d failed: %v", e.Kind, e.Handle, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a recovered panic value from a callback body so it can
// travel through the error-handling path like any other dispatch failure.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TimeoutError is used when a synchronous wrapper or a bridge command with a
// configured deadline times out.
type TimeoutError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "operation timed out"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
