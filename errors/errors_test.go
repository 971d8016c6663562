package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeMatching(t *testing.T) {
	err := UnknownSession("abc-123")
	assert.True(t, Is(err, ErrCodeUnknownSession))
	assert.False(t, Is(err, ErrCodeSpawnFailure))
	assert.Equal(t, ErrCodeUnknownSession, GetCode(err))
}

func TestWrappedErrorUnwrapping(t *testing.T) {
	cause := fmt.Errorf("fork/exec /bin/sh: no such file or directory")
	err := SpawnFailure("wt-1", cause)

	assert.True(t, Is(err, ErrCodeSpawnFailure))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "wt-1", err.Details["worktreeId"])
}

func TestWrappedStudioErrorCode(t *testing.T) {
	inner := InvalidAction("OpenFile", "missing path")
	outer := fmt.Errorf("dispatch: %w", inner)

	assert.True(t, Is(outer, ErrCodeInvalidAction))
	assert.Equal(t, ErrCodeInvalidAction, GetCode(outer))
}

func TestNilError(t *testing.T) {
	assert.False(t, Is(nil, ErrCodeInternal))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInternal, "boom").WithDetail("key", "value")
	assert.Equal(t, "value", err.Details["key"])
	assert.Contains(t, err.ToJSON(), "INTERNAL_ERROR")
}
