package subscription

import "errors"

var (
	ErrRecordNotFound   = errors.New("subscriber record not found")
	ErrCustomerNotFound = errors.New("billing customer not found")
	ErrInvalidRecord    = errors.New("subscriber record violates invariants")
	ErrInvalidUserID    = errors.New("user id is required")
	ErrStore            = errors.New("subscriber store failure")
	ErrUsage            = errors.New("failed to count usage")

	ErrNoActiveSubscription    = errors.New("no active subscription")
	ErrNotReactivatable        = errors.New("subscription cannot be reactivated")
	ErrInvalidCancellationType = errors.New("invalid cancellation type")
	ErrTransitionRejected      = errors.New("subscription transition rejected")

	ErrProvider              = errors.New("billing provider error")
	ErrMissingAPIKey         = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret  = errors.New("billing provider webhook secret is required")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrEventInFlight         = errors.New("webhook event is already being processed")
	ErrInvalidPriceCatalog   = errors.New("invalid price catalog")
)

// providerError tags err as a provider failure unless it already is one.
func providerError(err error) error {
	if err == nil || errors.Is(err, ErrProvider) {
		return err
	}
	return errors.Join(ErrProvider, err)
}
