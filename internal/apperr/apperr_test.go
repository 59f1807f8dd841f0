package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("software 1: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("name taken: %w", ErrConflict), http.StatusConflict},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("request 3: %w", ErrAlreadyReviewed), http.StatusBadRequest},
		{fmt.Errorf("bad url: %w", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("get: %w", ErrFetchFailed), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Status(c.err), c.err.Error())
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "Internal server error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "name taken: conflict", Message(fmt.Errorf("name taken: %w", ErrConflict)))
}
