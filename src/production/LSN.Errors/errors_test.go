package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidation("Missing required fields", "humidity"), http.StatusBadRequest},
		{"auth", NewAuth("Unauthorized"), http.StatusUnauthorized},
		{"not found", NewNotFound("Endpoint not found"), http.StatusNotFound},
		{"timezone", NewInvalidTimezone("Not/AZone", nil), http.StatusBadRequest},
		{"storage", Storage(errors.New("disk full"), "insert reading"), http.StatusInternalServerError},
		{"rate limited", NewRateLimited("Too many requests"), http.StatusTooManyRequests},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ingest: %w", NewAuth("Unauthorized")), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessageHidesStorageDetail(t *testing.T) {
	err := Storage(errors.New("database is locked"), "insert reading")

	assert.Equal(t, "Internal server error", Message(err))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestValidationMessageListsFields(t *testing.T) {
	err := NewValidation("Missing required fields", "temperature", "pressure")

	assert.Equal(t, "Missing required fields: temperature, pressure", Message(err))
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(nil, KindValidation))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("no such table")
	err := Storage(cause, "query latest")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage", KindOf(err).String())
}

func TestInvalidTimezoneMessage(t *testing.T) {
	err := NewInvalidTimezone("Not/AZone", errors.New("unknown time zone Not/AZone"))

	assert.Equal(t, "Unknown timezone", Message(err))
	assert.Contains(t, err.Error(), "Not/AZone")
}
