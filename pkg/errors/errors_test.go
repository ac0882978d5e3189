package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("document 9: %w", ErrDocumentNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad year", ErrInvalidInput), http.StatusBadRequest},
		{ErrInvalidPayload, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ErrIllegalTransition), http.StatusConflict},
		{ErrLockUnavailable, http.StatusConflict},
		{fmt.Errorf("%w: postings", ErrShardUnavailable), http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusServiceUnavailable},
		{Newf(ErrInvalidInput, http.StatusTeapot, "pinned %d", 1), http.StatusTeapot},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("search: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "query has %d terms", 40))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "search: invalid input: query has 40 terms", err.Error())
}
