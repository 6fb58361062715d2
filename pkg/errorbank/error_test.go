package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{NotFound("x"), http.StatusNotFound},
		{Unprocessable("x"), http.StatusUnprocessableEntity},
		{Internal("x"), http.StatusInternalServerError},
		{InvalidTransition("x"), http.StatusConflict},
		{InsufficientStock("x"), http.StatusConflict},
		{GatewayFailure("x"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestGRPCCodes(t *testing.T) {
	assert.Equal(t, codes.FailedPrecondition, InvalidTransition("x").GRPCCode())
	assert.Equal(t, codes.FailedPrecondition, InsufficientStock("x").GRPCCode())
	assert.Equal(t, codes.Unavailable, GatewayFailure("x").GRPCCode())
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Internal("wrapper", WithCause(cause))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestWithDetail(t *testing.T) {
	err := InvalidTransition("cannot move",
		WithDetail("current", "pending"),
		WithDetail("target", "shipped"),
	)
	assert.Equal(t, "pending", err.Details()["current"])
	assert.Equal(t, "shipped", err.Details()["target"])
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	app := NotFound("missing")
	assert.Same(t, app, From(app))
	assert.Same(t, app, From(fmt.Errorf("wrapped: %w", app)))

	plain := From(errors.New("raw"))
	assert.Equal(t, KindInternal, plain.Kind())
}
