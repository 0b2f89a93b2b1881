package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type teapot struct{}

func (teapot) Error() string   { return "short and stout" }
func (teapot) StatusCode() int { return http.StatusTeapot }

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("loading: %w", ErrRecordNotFound), http.StatusNotFound},
		{ErrUnsupportedFormat, http.StatusBadRequest},
		{fmt.Errorf("table x: %w", ErrUnknownRecordType), http.StatusBadRequest},
		{fmt.Errorf("task T-1: %w", ErrMalformedRecord), http.StatusUnprocessableEntity},
		{fmt.Errorf("breaker: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{ErrIndexCorrupt, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", teapot{}), http.StatusTeapot},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestPublicHidesServerErrors(t *testing.T) {
	code, msg := Public(fmt.Errorf("%w: limit -1", ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid input: limit -1", msg)

	code, msg = Public(fmt.Errorf("open /var/lib/index.json: permission denied"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal Server Error", msg)
}
