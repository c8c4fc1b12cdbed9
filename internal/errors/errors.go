// Package errors provides centralized error definitions and error handling utilities
// for buildwatch. It defines the sentinel errors shared across the build
// monitor, typed errors carrying profile and transport context, and
// classification helpers.
//
// # Error Types
//
//   - ProfileError: a custom tool profile entry that could not be compiled
//   - TransportError: a spawn or signalling failure inside a process transport
//
// # Usage
//
//	err := errors.NewProfileError("laravel-mix", "detect", errors.ErrInvalidProfile)
//
//	if errors.Is(err, errors.ErrInvalidProfile) { ... }
//
//	var perr *errors.ProfileError
//	if errors.As(err, &perr) { ... }
//
// # Propagation
//
// Nearly every failure inside the monitor is handled locally: skipped profiles
// are logged, degraded transports are swapped transparently, and process
// crashes surface as a build phase rather than an error value. The only
// condition returned to callers of the supervisor is [ErrDisposed].
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityWarning is for errors that degrade behavior without stopping it.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrDisposed is returned when an operation is invoked on a supervisor
	// that has already been disposed.
	ErrDisposed = New("supervisor disposed")

	// ErrInvalidProfile indicates a custom tool profile is missing a required
	// field or carries a pattern that does not compile.
	ErrInvalidProfile = New("invalid tool profile")

	// ErrTransportUnavailable indicates the requested transport cannot be
	// used on this host (no pty support, unsupported platform).
	ErrTransportUnavailable = New("transport unavailable")

	// ErrSpawnFailed indicates the transport could not start the command.
	ErrSpawnFailed = New("spawn failed")

	// ErrEmptyCommand indicates a build was requested without a command.
	ErrEmptyCommand = New("empty command")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// ProfileError describes why a single custom tool profile was rejected.
//
// Example:
//
//	err := errors.NewProfileError("kirbyup", "success[1]", cause)
//	fmt.Println(err) // "profile error [tool=kirbyup, field=success[1]]: ..."
type ProfileError struct {
	Name  string
	Field string
	Err   error
}

// NewProfileError creates a new ProfileError.
func NewProfileError(name, field string, cause error) *ProfileError {
	return &ProfileError{Name: name, Field: field, Err: cause}
}

// Error returns the formatted error message.
func (e *ProfileError) Error() string {
	var parts []string
	if e.Name != "" {
		parts = append(parts, fmt.Sprintf("tool=%s", e.Name))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}

	prefix := "profile error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("profile error [%s]", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *ProfileError) Unwrap() error { return e.Err }

// Is reports ErrInvalidProfile for every profile error so callers can match
// on the sentinel without unwrapping regexp syntax errors.
func (e *ProfileError) Is(target error) bool {
	return target == ErrInvalidProfile
}

// Severity returns the error severity. Rejected profiles never stop a build.
func (e *ProfileError) Severity() Severity { return SeverityWarning }

// TransportError represents a failure inside a process transport.
type TransportError struct {
	Transport string // "pty" or "pipe"
	Op        string // "probe", "spawn", "signal"
	Err       error
}

// NewTransportError creates a new TransportError.
func NewTransportError(transport, op string, cause error) *TransportError {
	return &TransportError{Transport: transport, Op: op, Err: cause}
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error [%s %s]: %v", e.Transport, e.Op, e.Err)
	}
	return fmt.Sprintf("transport error [%s %s]", e.Transport, e.Op)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// Severity returns the error severity. A failed probe only degrades output.
func (e *TransportError) Severity() Severity {
	if e.Op == "probe" {
		return SeverityWarning
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRecoverable reports whether a failure can be worked around inside the
// monitor: a transport failure by falling back to another transport, an
// invalid profile by skipping it. Cancellation, an empty command and a
// disposed supervisor cannot.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if Is(err, ErrDisposed) || Is(err, ErrEmptyCommand) || Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return false
	}
	if Is(err, ErrInvalidProfile) || Is(err, ErrTransportUnavailable) {
		return true
	}
	var terr *TransportError
	return As(err, &terr)
}

// GetSeverity returns the severity of err. Cancellation is the caller's own
// doing and only worth a debug line; anything unclassified is an error.
func GetSeverity(err error) Severity {
	var s interface{ Severity() Severity }
	if As(err, &s) {
		return s.Severity()
	}
	if Is(err, context.Canceled) {
		return SeverityDebug
	}
	return SeverityError
}
