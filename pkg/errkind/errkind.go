// SPDX-License-Identifier: GPL-2.0-or-later

// Package errkind defines the error kinds shared by the parser and rebuilder.
// Every error returned by this module wraps exactly one of them.
package errkind

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrFormat malformed bytes.
	ErrFormat = errors.New("format error")

	// ErrLookup path segment matched zero or several atoms.
	ErrLookup = errors.New("lookup error")

	// ErrConsistency structurally valid but unsupported or contradictory content.
	ErrConsistency = errors.New("consistency error")

	// ErrIO filesystem or mapping failure.
	ErrIO = errors.New("io error")
)

// Formatf returns a format error.
func Formatf(format string, a ...interface{}) error {
	return newf(ErrFormat, format, a...)
}

// Lookupf returns a lookup error.
func Lookupf(format string, a ...interface{}) error {
	return newf(ErrLookup, format, a...)
}

// Consistencyf returns a consistency error.
func Consistencyf(format string, a ...interface{}) error {
	return newf(ErrConsistency, format, a...)
}

func newf(kind error, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, a...))
}

// IO wraps err as an io error while keeping err reachable
// through errors.Is and errors.As.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ioError{op: op, err: err}
}

type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string {
	return ErrIO.Error() + ": " + e.op + ": " + e.err.Error()
}

func (e *ioError) Unwrap() error { return e.err }

func (e *ioError) Is(target error) bool { return target == ErrIO }

// Kind returns the kind wrapped by err or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrFormat, ErrLookup, ErrConsistency, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
