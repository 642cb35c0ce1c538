package toolerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want bool
	}{
		{NoPendingAction, false},
		{MissingParam, true},
		{IndexOutOfRange, true},
		{InvalidChoice, true},
		{InternalError, false},
		{UnknownActionType, false},
	}
	for _, c := range cases {
		err := New(c.code, "")
		assert.Equal(t, c.want, err.Retryable(), "code %s", c.code)
	}
}

func TestFromErrorPreservesCode(t *testing.T) {
	t.Parallel()

	original := New(IndexOutOfRange, "index 5 out of range")
	wrapped := FromError(original)
	require.Same(t, original, wrapped)
	assert.Equal(t, IndexOutOfRange, wrapped.ErrCode)
}

func TestFromErrorDefaultsUnclassified(t *testing.T) {
	t.Parallel()

	wrapped := FromError(errors.New("boom"))
	require.NotNil(t, wrapped)
	assert.Equal(t, InternalError, wrapped.ErrCode)
	assert.Equal(t, "boom", wrapped.Error())
}

func TestNewWithCauseUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	err := NewWithCause(InternalError, "wrapped", cause)
	require.ErrorIs(t, err, err)
	assert.Equal(t, "root cause", err.Unwrap().Error())
}

func TestNilToolErrorIsSafe(t *testing.T) {
	t.Parallel()

	var err *ToolError
	assert.Equal(t, "", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.False(t, err.Retryable())
}
