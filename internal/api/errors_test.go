package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmill/taskmill/internal/pool"
	"github.com/taskmill/taskmill/internal/service/auth"
)

func TestMapErrorToStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid api key", auth.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"unknown task type", fmt.Errorf("%w: %q", pool.ErrUnknownTaskType, "nope"), http.StatusNotFound},
		{"circuit open", pool.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"pool terminated", pool.ErrPoolTerminated, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("task 9: %w", pool.ErrTaskTimeout), http.StatusGatewayTimeout},
		{"cancelled", pool.ErrTaskCancelled, http.StatusBadRequest},
		{"handler failure", fmt.Errorf("%w: boom", pool.ErrTaskFailed), http.StatusUnprocessableEntity},
		{"worker fault", pool.ErrWorkerFault, http.StatusUnprocessableEntity},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage_NeverEchoesInternalDetail(t *testing.T) {
	internal := fmt.Errorf("%w: connect to postgres://u:p@host failed", pool.ErrTaskFailed)
	msg := GetSafeErrorMessage(internal)
	assert.Equal(t, "Task failed", msg)
	assert.NotContains(t, msg, "postgres")
}

func TestGetSafeErrorMessage_Nil(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
