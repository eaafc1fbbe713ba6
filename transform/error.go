/**
 * Copyright (c) 2019, The Refract Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package transform

import (
	"fmt"
	"log"
	"runtime"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Op describes an operation, usually as the package and method, such as "transform.TransformMany".
type Op string

// IncludeName tags the name of the include whose resolver produced an error. It is given to
// NewError as an argument.
type IncludeName string

// ErrKind defines the kind of error this is.
type ErrKind uint8

// Enumeration of ErrKind
const (
	ErrKindOther    ErrKind = iota // Unclassified error. This value is not printed in the error message.
	ErrKindInclude                 // A selected include resolver failed.
	ErrKindConfig                  // Invalid transformer construction.
	ErrKindInternal                // Internal error
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindOther:
		return "other error"
	case ErrKindInclude:
		return "include resolution error"
	case ErrKindConfig:
		return "configuration error"
	case ErrKindInternal:
		return "internal error"
	}
	return "unknown error kind"
}

// An Error describes an error found while transforming an object. It carries the name of the
// include whose resolver failed (when there is one) and the underlying cause, and can be
// serialized to JSON for including in an API error response.
type Error struct {
	// Message describes the error for debugging purposes.
	Message string

	// Include is the name of the include whose resolver produced the error; empty when the error is
	// not attributable to a single include.
	Include string

	// The underlying error that triggered this one
	Err error

	// Op is the operation being performed, usually the name of the method being invoked.
	Op Op

	// Kind is the class of error
	Kind ErrKind
}

// Error implements Go error interface.
var _ error = (*Error)(nil)

// NewError builds an error value from arguments. Inspired by the design of upspin.io/errors [0].
//
// Accepted argument types: IncludeName, error, Op and ErrKind. Include name and kind are pulled
// from the underlying *Error when not provided in the arguments.
//
// [0]: https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html.
func NewError(message string, args ...interface{}) error {
	e := &Error{
		Message: message,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case IncludeName:
			e.Include = string(arg)

		case error:
			e.Err = arg

		case Op:
			e.Op = arg

		case ErrKind:
			e.Kind = arg

		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("NewError: bad call from %s:%d: %v", file, line, args)
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	// Propagate include name and kind from underlying error when one is not provided in argument.
	if prev, ok := e.Err.(*Error); ok {
		if len(e.Include) == 0 {
			e.Include = prev.Include
		}
		if e.Kind == ErrKindOther {
			e.Kind = prev.Kind
		}
	}

	return e
}

// WrapError is a convenient wrapper to build an Error value from an underlying error with a
// message.
func WrapError(err error, message string) error {
	return NewError(message, err)
}

// WrapErrorf is similar to WrapError but with the format specifier.
func WrapErrorf(err error, format string, args ...interface{}) error {
	return NewError(fmt.Sprintf(format, args...), err)
}

// Error implements Go's error interface.
func (e *Error) Error() string {
	var b strings.Builder
	e.printError(&b, nil)
	return b.String()
}

func (e *Error) printError(b *strings.Builder, nextErr *Error) {
	// If the previous error was also one of ours, suppress duplications so the message won't
	// contain the same operation, include name or kind twice.
	initialLen := b.Len()

	// pad appends str to the buffer if the buffer already has some data.
	pad := func(str string) {
		if b.Len() == initialLen {
			return
		}
		b.WriteString(str)
	}

	if len(e.Op) > 0 {
		b.WriteString(string(e.Op))
	}

	if len(e.Message) > 0 {
		pad(": ")
		b.WriteString(e.Message)
	}

	if len(e.Include) > 0 {
		// Don't print the include name if the next error already did.
		if nextErr == nil || nextErr.Include != e.Include {
			if b.Len() == initialLen {
				b.WriteString("For ")
			} else {
				b.WriteString(" for ")
			}
			b.WriteString(`include "`)
			b.WriteString(e.Include)
			b.WriteString(`"`)
		}
	}

	if e.Kind != ErrKindOther {
		// Don't print the kind if the next error has the same kind as ours.
		if nextErr == nil || nextErr.Kind != e.Kind {
			pad(": ")
			b.WriteString(e.Kind.String())
		}
	}

	if e.Err != nil {
		if prev, ok := e.Err.(*Error); ok {
			// Indent on new line if we are cascading non-empty Error.
			pad(":\n  ")
			prev.printError(b, e)
		} else {
			pad(": ")
			b.WriteString(e.Err.Error())
		}
	}
}

// Cause returns the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler. The cause's message is folded into the serialized form so
// the response carries the semantic content (include name + cause) without exposing internals.
func (e *Error) MarshalJSON() ([]byte, error) {
	serialized := struct {
		Message string `json:"message"`
		Include string `json:"include,omitempty"`
		Cause   string `json:"cause,omitempty"`
	}{
		Message: e.Message,
		Include: e.Include,
	}
	if e.Err != nil {
		serialized.Cause = e.Err.Error()
	}
	return jsoniter.Marshal(serialized)
}
