package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("x"), http.StatusBadRequest, codes.InvalidArgument},
		{Conflict("x"), http.StatusConflict, codes.Aborted},
		{IllegalTransition("x"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{InsufficientFunds("x"), http.StatusPaymentRequired, codes.FailedPrecondition},
		{Expired("x"), http.StatusGone, codes.FailedPrecondition},
		{Mismatch("x"), http.StatusUnprocessableEntity, codes.InvalidArgument},
		{ExternalService("x"), http.StatusBadGateway, codes.Unavailable},
		{TooManyRequests("x"), http.StatusTooManyRequests, codes.ResourceExhausted},
		{Internal("x"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.Equal(t, tc.code, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")
	appErr := From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)

	assert.Nil(t, From(nil))
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("approve: %w", Conflict("stale", WithDetail("actual", "finance_approved")))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindIllegalTransition))
	assert.Equal(t, "finance_approved", From(err).Details()["actual"])
}
