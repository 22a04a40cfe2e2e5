// Package lkrerr is the error taxonomy shared across the lexer, parser,
// checker, compiler and VM (spec §7). It is a rename-and-adapt of the
// teacher's internal/errors: the same Type/Location/CallStack shape,
// generalized to carry a token.Span instead of a bare line/column pair
// and to wrap non-lkr errors (I/O, a failed module read) with
// github.com/pkg/errors so their original cause survives alongside the
// lkr-level Kind classification.
package lkrerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"lkr/internal/token"
)

// Kind classifies an Error the way spec §7 enumerates runtime/compile
// failure modes.
type Kind string

const (
	ParseError    Kind = "ParseError"
	TypeError     Kind = "TypeError"
	CompileError  Kind = "CompileError"
	RuntimeError  Kind = "RuntimeError"
	ReferenceError Kind = "ReferenceError"
	ImportError   Kind = "ImportError"
)

// Frame is one call-stack entry attached to a runtime error (spec §7
// "RuntimeError carries a call stack").
type Frame struct {
	Function string
	Span     token.Span
}

// Error is lkr's single error type: every failure surfaced to a user
// (CLI, LSP diagnostics) is one of these, carrying enough to render
// spec.md §10.2's "kind: message (file:line:col)" line.
type Error struct {
	Kind    Kind
	Message string
	File    string
	Span    token.Span
	Stack   []Frame
	cause   error
}

func New(kind Kind, file string, span token.Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, File: file, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Wrap lifts a foreign error (a failed module read, a driver error from
// internal/bcstore) into an lkrerr.Error, keeping the original as the
// pkg/errors cause so %+v still prints its trace.
func Wrap(kind Kind, file string, span token.Span, cause error, msg string) *Error {
	return &Error{Kind: kind, File: file, Span: span, Message: msg, cause: errors.Wrap(cause, msg)}
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.File != "" {
		fmt.Fprintf(&sb, " (%s:%s)", e.File, e.Span)
	}
	for _, fr := range e.Stack {
		if fr.Function != "" {
			fmt.Fprintf(&sb, "\n  at %s (%s)", fr.Function, fr.Span)
		} else {
			fmt.Fprintf(&sb, "\n  at %s", fr.Span)
		}
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As and
// to pkg/errors' Cause.
func (e *Error) Unwrap() error { return e.cause }

// Cause implements pkg/errors' Causer so errors.Cause(e) reaches the
// original foreign error through a Wrap.
func (e *Error) Cause() error { return e.cause }

func (e *Error) WithStack(frames []Frame) *Error {
	e.Stack = frames
	return e
}

func (e *Error) AddFrame(function string, span token.Span) *Error {
	e.Stack = append(e.Stack, Frame{Function: function, Span: span})
	return e
}
