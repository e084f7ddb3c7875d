package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig     Kind = "config"
	KindValidation Kind = "validation"
	KindFetch      Kind = "fetch"
	KindExtract    Kind = "extract"
	KindSynthesis  Kind = "synthesis"
	KindCompletion Kind = "completion"
	KindEmbedding  Kind = "embedding"
	KindStorage    Kind = "storage"
	KindAuth       Kind = "auth"
	KindTransport  Kind = "transport"
	KindBootstrap  Kind = "bootstrap"
	KindUnknown    Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
// Message returns the human-readable part of err, suitable for API
// responses that should not expose internal operation names.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}
