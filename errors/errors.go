// Package errors provides the error taxonomy for the wind extraction pipeline.
//
// Every failure surfaced by this module is an *Error carrying the operation
// that failed, the destination key (when known) and one of the kind sentinels
// below. Both the kind and the underlying cause are reachable through
// errors.Is and errors.As.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is (or the Is* helpers) to classify a failure.
var (
	// ErrStreamCorruption indicates a magic/terminator mismatch, an implausible
	// declared length or a truncated record in the input stream.
	ErrStreamCorruption = errors.New("windstream: stream corruption")

	// ErrDecodeFailure indicates that a record's header sections could not be decoded.
	ErrDecodeFailure = errors.New("windstream: decode failure")

	// ErrNetworkFailure indicates that retrieving the input stream failed.
	ErrNetworkFailure = errors.New("windstream: network failure")

	// ErrStorageFailure indicates that a storage backend call failed.
	ErrStorageFailure = errors.New("windstream: storage failure")

	// ErrInvalidState indicates an operation that is not valid in the current
	// upload lifecycle state.
	ErrInvalidState = errors.New("windstream: invalid state")

	// ErrInvalidInput indicates invalid caller-provided input such as an empty
	// or malformed destination key.
	ErrInvalidInput = errors.New("windstream: invalid input")
)

// Error is a pipeline error with context about the operation that failed.
type Error struct {
	// Op is the operation that failed (e.g. "feed", "uploadPart", "complete")
	Op string

	// Key is the destination object key (if applicable)
	Key string

	// Part is the part number involved (if applicable)
	Part int32

	// Kind is one of the sentinel errors of this package
	Kind error

	// Err is the underlying cause, possibly nil
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "windstream." + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Part > 0 {
		msg += fmt.Sprintf(" part %d", e.Part)
	}

	kind := "error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	if e.Err == nil {
		return msg + ": " + kind
	}
	return fmt.Sprintf("%s: %s: %v", msg, kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithKey adds destination key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPart adds part number context to an existing error.
func (e *Error) WithPart(part int32) *Error {
	e.Part = part
	return e
}

// WithMessage wraps the underlying cause with a custom message.
func (e *Error) WithMessage(message string) *Error {
	if e.Err == nil {
		e.Err = errors.New(message)
		return e
	}
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error of the given kind for the operation.
func NewError(op string, kind, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Corruption creates a StreamCorruption error.
func Corruption(op string, format string, args ...any) *Error {
	return NewError(op, ErrStreamCorruption, fmt.Errorf(format, args...))
}

// Decode creates a DecodeFailure error.
func Decode(op string, format string, args ...any) *Error {
	return NewError(op, ErrDecodeFailure, fmt.Errorf(format, args...))
}

// Network wraps err as a NetworkFailure.
func Network(op string, err error) *Error {
	return NewError(op, ErrNetworkFailure, err)
}

// Storage wraps err as a StorageFailure.
func Storage(op string, err error) *Error {
	return NewError(op, ErrStorageFailure, err)
}

// InvalidState creates an InvalidState error.
func InvalidState(op string, format string, args ...any) *Error {
	return NewError(op, ErrInvalidState, fmt.Errorf(format, args...))
}

// InvalidInput creates an InvalidInput error.
func InvalidInput(op string, format string, args ...any) *Error {
	return NewError(op, ErrInvalidInput, fmt.Errorf(format, args...))
}

// IsStreamCorruption reports whether err is a StreamCorruption failure.
func IsStreamCorruption(err error) bool {
	return errors.Is(err, ErrStreamCorruption)
}

// IsDecodeFailure reports whether err is a DecodeFailure.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrDecodeFailure)
}

// IsNetworkFailure reports whether err is a NetworkFailure.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}

// IsStorageFailure reports whether err is a StorageFailure.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsInvalidState reports whether err is an InvalidState error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsInvalidInput reports whether err is an InvalidInput error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
