// Copyright 2026 The coreval Authors
// This file is part of coreval.
//
// coreval is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// coreval is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with coreval. If not, see <http://www.gnu.org/licenses/>.

// Package errors defines the error taxonomy shared by every layer of
// coreval (pool, epoch, value, kv, container). Every recoverable failure
// surfaces as one of the sentinel Kinds below, wrapped with a call stack via
// github.com/pkg/errors so a caller can both errors.Is against the kind and
// print where it originated.
package errors

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-stack/stack"
	"github.com/pkg/errors"
)

// Kind is one of the recoverable failure modes in coreval's error
// taxonomy. Kind implements error so it can be used directly as a
// sentinel with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// OutOfMemory is returned when an allocator fallback (the platform heap)
	// itself fails. The block pool and epoch reclaimer never return this -
	// for them OOM at chunk allocation is fatal.
	OutOfMemory Kind = "out of memory"
	// UnknownKind is returned when a decoded tag byte falls outside 0..15.
	UnknownKind Kind = "unknown value kind"
	// Truncated is returned when a reader is exhausted before a payload
	// completes.
	Truncated Kind = "truncated input"
	// BadString is returned when a string payload is not valid UTF-8.
	BadString Kind = "invalid utf-8 in string payload"
	// NonCanonical is returned only by test harnesses: a decoded value that
	// re-encodes to different bytes than it was decoded from.
	NonCanonical Kind = "non-canonical encoding"
	// CycleDetected is returned when the encoder observes a container or
	// array value that recursively contains itself.
	CycleDetected Kind = "cycle detected during encoding"
	// DepthExceeded is returned when decoding recurses past the configured
	// maximum depth.
	DepthExceeded Kind = "maximum decode depth exceeded"
	// TrailingData is returned when decoding a stream leaves unconsumed
	// bytes after the outermost value.
	TrailingData Kind = "trailing data after value"
	// TypeMismatch is returned when a decoded JSON/XML payload or a
	// container header field does not have the type its kind requires.
	// The typed accessors on value.Value never return it: they report a
	// kind mismatch as a false ok result.
	TypeMismatch Kind = "value kind mismatch"
	// Cancelled is returned when an auto-refresh worker is stopped mid
	// refresh.
	Cancelled Kind = "refresh cancelled"
	// NotImplemented is the kind reserved for codec paths that are
	// optional to support. No code path in this module returns it.
	NotImplemented Kind = "not implemented"
	// ConfigInvalid is returned when a configuration file cannot be read
	// or fails to parse as TOML.
	ConfigInvalid Kind = "invalid configuration"
)

// Wrap attaches kind and a call stack to err's context, formatted with msg.
// Wrap returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(fmt.Errorf("%s: %w: %w", msg, kind, err))
}

// New creates a new error of the given kind with a call stack attached.
func New(kind Kind, msg string) error {
	return errors.WithStack(fmt.Errorf("%s: %w", msg, kind))
}

// Is reports whether err is (or wraps) kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}

// Fatal panics with a value carrying a raw stack trace captured at the
// call site. It is used only for non-recoverable conditions: chunk
// allocation failure and debug-mode invalid or double frees in the block
// pool, misuse of force_collect outside shutdown, and starting an
// already-running auto-refresher.
type Fatal struct {
	Msg   string
	Stack stack.CallStack
}

func (f *Fatal) Error() string {
	return fmt.Sprintf("%s\n%s", f.Msg, spew.Sdump(f.Stack))
}

// Panic raises a Fatal error carrying the caller's stack trace.
func Panic(msg string) {
	panic(&Fatal{Msg: msg, Stack: stack.Trace().TrimRuntime()})
}
