package server

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/unrepo/devportal/internal/dashboard"
	apierrors "github.com/unrepo/devportal/internal/errors"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/middleware"
)

// toAPIError maps controller and key store failures onto the portal error taxonomy
func toAPIError(err error) *apierrors.APIError {
	var remote *keystore.RemoteError
	switch {
	case errors.Is(err, dashboard.ErrNameRequired), errors.Is(err, keystore.ErrEmptyName):
		return apierrors.ErrNameRequiredError
	case errors.Is(err, dashboard.ErrInvalidKeyType), errors.Is(err, keystore.ErrInvalidKeyType):
		return apierrors.ErrInvalidKeyTypeError
	case errors.Is(err, keystore.ErrEmptyKeyID):
		return apierrors.NewInvalidRequestError("API key id is required")
	case errors.Is(err, dashboard.ErrNotConfirmed):
		return apierrors.ErrConfirmationRequiredError
	case errors.Is(err, dashboard.ErrSubmitInProgress):
		return apierrors.ErrSubmitInProgressError
	case errors.Is(err, dashboard.ErrFlowClosed):
		return apierrors.ErrFlowStateError
	case errors.Is(err, dashboard.ErrKeyNotFound):
		return apierrors.ErrAPIKeyNotFoundError
	case errors.Is(err, dashboard.ErrNotAuthenticated):
		return apierrors.ErrUnauthorizedError
	case errors.Is(err, dashboard.ErrClosed):
		return apierrors.ErrSessionExpiredError
	case errors.Is(err, keystore.ErrCircuitOpen):
		return apierrors.ErrCircuitBreakerOpenError
	case errors.Is(err, keystore.ErrBackendTimeout), errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrBackendTimeoutError
	case errors.Is(err, keystore.ErrBackendUnavailable):
		return apierrors.ErrBackendUnavailableError
	case errors.As(err, &remote):
		if remote.Rejected() {
			return apierrors.NewBackendRejectedError(remote.Message)
		}
		return apierrors.NewBackendError(remote.Operation, remote.StatusCode)
	case errors.Is(err, keystore.ErrMalformedResponse):
		return apierrors.NewBackendError("decode", 0).WithMessage("unrepo API returned a malformed response")
	default:
		return apierrors.ErrInternalServerError
	}
}

// respondError logs server side failures and sends the standard error envelope
func respondError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apierrors.IsServerError(apiErr) {
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "server", c.FullPath())
	}
	middleware.RespondWithError(c, apiErr)
}
