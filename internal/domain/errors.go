// Package domain holds the shared types, error kinds and collaborator interfaces of the study engine.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the pipeline.
type Kind string

const (
	KindUnsupportedFormat     Kind = "unsupported_format"
	KindDecodeError           Kind = "decode_error"
	KindCorruptDocument       Kind = "corrupt_document"
	KindInvalidChunkConfig    Kind = "invalid_chunk_config"
	KindModelsNotInitialized  Kind = "models_not_initialized"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindLoadError             Kind = "load_error"
	KindDispatchFailure       Kind = "dispatch_failure"
	KindInvalidTask           Kind = "invalid_task"
)

// Sentinels for errors.Is matching. A *Error matches the sentinel of its kind.
var (
	ErrUnsupportedFormat     = &Error{Kind: KindUnsupportedFormat}
	ErrDecodeError           = &Error{Kind: KindDecodeError}
	ErrCorruptDocument       = &Error{Kind: KindCorruptDocument}
	ErrInvalidChunkConfig    = &Error{Kind: KindInvalidChunkConfig}
	ErrModelsNotInitialized  = &Error{Kind: KindModelsNotInitialized}
	ErrCapabilityUnavailable = &Error{Kind: KindCapabilityUnavailable}
	ErrLoadError             = &Error{Kind: KindLoadError}
	ErrDispatchFailure       = &Error{Kind: KindDispatchFailure}
	ErrInvalidTask           = &Error{Kind: KindInvalidTask}
)

// Error is a typed pipeline error with context.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err == nil {
		return string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new domain error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Common error constructors
func UnsupportedFormat(message string, err error) *Error {
	return NewError(KindUnsupportedFormat, message, err)
}

func DecodeError(message string, err error) *Error {
	return NewError(KindDecodeError, message, err)
}

func CorruptDocument(message string, err error) *Error {
	return NewError(KindCorruptDocument, message, err)
}

func InvalidChunkConfig(message string, err error) *Error {
	return NewError(KindInvalidChunkConfig, message, err)
}

func ModelsNotInitialized(message string) *Error {
	return NewError(KindModelsNotInitialized, message, nil)
}

func CapabilityUnavailable(message string, err error) *Error {
	return NewError(KindCapabilityUnavailable, message, err)
}

func LoadError(message string, err error) *Error {
	return NewError(KindLoadError, message, err)
}

func DispatchFailure(message string, err error) *Error {
	return NewError(KindDispatchFailure, message, err)
}

func InvalidTask(message string) *Error {
	return NewError(KindInvalidTask, message, nil)
}
