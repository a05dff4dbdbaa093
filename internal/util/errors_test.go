package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForKind(t *testing.T) {
	cases := map[ErrorKind]int{
		KindUnauthenticated:  http.StatusUnauthorized,
		KindUnauthorized:     http.StatusForbidden,
		KindValidation:       http.StatusBadRequest,
		KindNotFound:         http.StatusNotFound,
		KindConflict:         http.StatusConflict,
		KindStorageFailure:   http.StatusBadGateway,
		KindTransientFailure: http.StatusServiceUnavailable,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusForKind(kind), string(kind))
	}
}

func TestAsAppErrorWrapsUnknownErrors(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	raw := errors.New("connection refused")
	appErr := AsAppError(raw)
	require.NotNil(t, appErr)
	assert.Equal(t, KindTransientFailure, appErr.Kind)
	assert.ErrorIs(t, appErr, raw)

	notFound := ErrNotFound(ReasonMessageNotFound, "Message not found")
	wrapped := fmt.Errorf("delete: %w", notFound)
	assert.Same(t, notFound, AsAppError(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestAppErrorMessage(t *testing.T) {
	err := ErrConflict(ReasonDuplicateRelationship, "Connection already exists")
	assert.Equal(t, "Connection already exists (duplicate_relationship)", err.Error())

	storage := ErrStorage(errors.New("disk full"))
	assert.Contains(t, storage.Error(), "disk full")
	assert.Equal(t, http.StatusBadGateway, storage.Status())
}
