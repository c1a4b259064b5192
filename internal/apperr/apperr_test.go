package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsKeepBucket(t *testing.T) {
	err := Conflict("Το email χρησιμοποιείται ήδη")

	assert.Equal(t, http.StatusConflict, Status(err))
	assert.Equal(t, "conflict", Code(err))
	assert.Equal(t, "Το email χρησιμοποιείται ήδη", Message(err))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	// the shared bucket must stay untouched
	assert.Equal(t, MsgConflict, ErrConflict.Message)
}

func TestEmptyMessageFallsBackToDefault(t *testing.T) {
	assert.Equal(t, MsgForbidden, Message(Forbidden("")))
	assert.Equal(t, MsgNotFound, Message(NotFound("")))
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := errors.New("dial tcp: connection refused")

	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, "internal_error", Code(err))
	assert.Equal(t, MsgInternal, Message(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("create service: %w", Internal(cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, MsgInternal, Message(err))
	assert.Nil(t, Wrap(nil, ErrBadRequest, "x"))
}

func TestResult(t *testing.T) {
	res := Result(Validation(map[string]string{"title": "Το πεδίο είναι υποχρεωτικό"}))

	assert.False(t, res.Success)
	assert.Equal(t, MsgValidation, res.Message)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Το πεδίο είναι υποχρεωτικό", res.Errors["title"])

	ok := OK("Αποθηκεύτηκε", map[string]int{"id": 7})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Errors)
}
