package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// MultiError collects errors from operations that must all be attempted.
type MultiError []error

func (me MultiError) Error() string {
	switch len(me) {
	case 0:
		return ""
	case 1:
		return me[0].Error()
	}
	msg := me[0].Error()
	for _, err := range me[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

// ErrOrNil returns nil when no error was collected.
func (me MultiError) ErrOrNil() error {
	if len(me) == 0 {
		return nil
	}
	return me
}
