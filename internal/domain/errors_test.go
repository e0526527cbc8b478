package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := DispatchFailure("summarize window 2", errors.New("HTTP 503"))

	assert.True(t, errors.Is(err, ErrDispatchFailure))
	assert.False(t, errors.Is(err, ErrLoadError))

	wrapped := fmt.Errorf("task failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrDispatchFailure))
	assert.Equal(t, KindDispatchFailure, KindOf(wrapped))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := CorruptDocument("open docx", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[corrupt_document] open docx")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestSentinelError_String(t *testing.T) {
	assert.Equal(t, "models_not_initialized", ErrModelsNotInitialized.Error())
}

func TestNewDocumentID(t *testing.T) {
	a := NewDocumentID("notes.txt", []byte("hello"))
	b := NewDocumentID("notes.txt", []byte("hello"))
	c := NewDocumentID("notes.txt", []byte("hello!"))

	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Len(t, a.SHA256, 64)
}
