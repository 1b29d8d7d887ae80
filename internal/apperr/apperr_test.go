package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(NotAMultiple, "50 is not a valid slot count")
	wrapped := fmt.Errorf("validate: %w", base)

	assert.Equal(t, NotAMultiple, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, NotAMultiple))
	assert.True(t, errors.Is(wrapped, New(NotAMultiple, "")))
	assert.False(t, errors.Is(wrapped, New(OutOfRange, "")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(PersistenceFailure, cause, "could not save lobbies")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not save lobbies: connection reset", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NotAMultiple.HTTPStatus())
	for _, k := range []Kind{AllocationInProgress, NoTeamsRegistered, LeagueLocked, ConfirmationRequired} {
		assert.Equal(t, http.StatusConflict, k.HTTPStatus(), k)
	}
	assert.Equal(t, http.StatusGone, MessageNotDeletable.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, NotAuthorized.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, PersistenceFailure.HTTPStatus())
}
