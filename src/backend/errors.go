package backend

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrCaptureFailed      = errors.New("screen capture failed")
	ErrRecordingFailed    = errors.New("recording failed")
	ErrRecordingNotActive = errors.New("recording not active")
	ErrStorage            = errors.New("storage error")
	ErrOCRFailed          = errors.New("OCR failed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Error is a backend failure of a given kind with an optional cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// wrap tags err with kind. Errors that already carry a kind are returned as is.
func wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

func errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
