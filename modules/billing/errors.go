package billing

import (
	"errors"
	"net/http"

	"github.com/petvoice/subscriptions/handler"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

var (
	errMissingIdentity  = handler.ErrUnauthorized.WithMessage("missing or invalid access token")
	errRateLimited      = handler.ErrTooManyRequests.WithMessage("too many subscription checks, slow down")
	errInvalidSignature = handler.NewHTTPError(http.StatusBadRequest, "invalid_signature").WithMessage("webhook signature verification failed")
	errInvalidPayload   = handler.NewHTTPError(http.StatusBadRequest, "invalid_payload").WithMessage("webhook payload is malformed")
	errInvalidType      = handler.NewHTTPError(http.StatusBadRequest, "invalid_cancellation_type").WithMessage("type must be immediate or end_of_period")
	errCustomerNotFound = handler.NewHTTPError(http.StatusNotFound, "customer_not_found").WithMessage("no billing customer for this account")
	errRecordNotFound   = handler.NewHTTPError(http.StatusNotFound, "subscriber_not_found").WithMessage("no subscription record for this account")
	errNoActive         = handler.NewHTTPError(http.StatusConflict, "no_active_subscription").WithMessage("no active subscription")
	errNotReactivatable = handler.NewHTTPError(http.StatusConflict, "not_reactivatable").WithMessage("subscription cannot be reactivated")
	errEventInFlight    = handler.NewHTTPError(http.StatusConflict, "event_in_flight").WithMessage("event is being processed, retry later")
	errProviderFailure  = handler.NewHTTPError(http.StatusInternalServerError, "billing_provider_error").WithMessage("billing provider is unavailable, try again later")
	errAuthUnavailable  = handler.NewHTTPError(http.StatusInternalServerError, "auth_unavailable").WithMessage("authentication service is unavailable")
)

// mapError translates service and identity errors into API errors.
func mapError(err error) (handler.HTTPError, bool) {
	switch {
	case errors.Is(err, identity.ErrAuthServer):
		return errAuthUnavailable, true
	case errors.Is(err, identity.ErrUnauthorized),
		errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrInvalidClaims):
		return errMissingIdentity, true
	case errors.Is(err, subscription.ErrSignatureVerification):
		return errInvalidSignature, true
	case errors.Is(err, subscription.ErrInvalidPayload):
		return errInvalidPayload, true
	case errors.Is(err, subscription.ErrEventInFlight):
		return errEventInFlight, true
	case errors.Is(err, subscription.ErrInvalidCancellationType):
		return errInvalidType, true
	case errors.Is(err, subscription.ErrNoActiveSubscription):
		return errNoActive, true
	case errors.Is(err, subscription.ErrNotReactivatable):
		return errNotReactivatable, true
	case errors.Is(err, subscription.ErrCustomerNotFound):
		return errCustomerNotFound, true
	case errors.Is(err, subscription.ErrRecordNotFound):
		return errRecordNotFound, true
	case errors.Is(err, subscription.ErrProvider):
		return errProviderFailure, true
	}
	return handler.HTTPError{}, false
}
