package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidParam, "bad input")
	assert.Equal(t, CodeInvalidParam, err.Code)
	assert.Equal(t, "bad input", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "[1001] bad input", err.Error())
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, CodeDatabaseError, "failed to load session")

	assert.Equal(t, CodeDatabaseError, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithDetailAndError(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(CodeInternalError, "oops").WithDetail("trace detail").WithError(cause)
	assert.Equal(t, "trace detail", err.Detail)
	assert.ErrorIs(t, err, cause)
}

func TestCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidParam, http.StatusBadRequest},
		{CodeSessionInvalid, http.StatusBadRequest},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeOverloaded, http.StatusTooManyRequests},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeServiceUnavailable, http.StatusServiceUnavailable},
		{CodeGenerationFailed, http.StatusInternalServerError},
		{CodeDatabaseError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, New(tc.code, "m").HTTPStatus, "code %s", tc.code)
	}
}

func TestAsAppError(t *testing.T) {
	t.Run("passes through app errors", func(t *testing.T) {
		original := New(CodeSessionNotFound, "gone")
		got := AsAppError(original)
		assert.Same(t, original, got)
	})

	t.Run("wraps plain errors", func(t *testing.T) {
		cause := stderrors.New("plain")
		got := AsAppError(cause)
		require.NotNil(t, got)
		assert.Equal(t, CodeUnknown, got.Code)
		assert.ErrorIs(t, got, cause)
	})
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(New(CodeUnknown, "x")))
	assert.False(t, IsAppError(stderrors.New("x")))
}
