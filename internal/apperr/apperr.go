// Package apperr defines the error type shared by respawn packages.
package apperr

import "fmt"

// Error is a user facing error. Message may contain fmt verbs that are
// filled in by Fmt, and Cause is the underlying error, if any.
type Error struct {
	Cause   error
	Message string

	// template is the unformatted message that produced this error
	template string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target was derived from the same message template, so
// formatted and wrapped copies still match the package level value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.tmpl() == e.tmpl()
}

// Fmt returns a copy of the error with its message formatted with args.
func (e *Error) Fmt(args ...any) *Error {
	return &Error{
		Message:  fmt.Sprintf(e.Message, args...),
		Cause:    e.Cause,
		template: e.tmpl(),
	}
}

// Wrap returns a copy of the error with err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		Message:  e.Message,
		Cause:    err,
		template: e.tmpl(),
	}
}

func (e *Error) tmpl() string {
	if e.template != "" {
		return e.template
	}

	return e.Message
}
