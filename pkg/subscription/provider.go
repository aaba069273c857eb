package subscription

import (
	"context"
	"fmt"
	"time"
)

// BillingProvider is the narrow set of billing API calls the service needs.
// Implementations must be idempotent: cancelling an already cancelled
// subscription, or scheduling an already scheduled one, is a no-op.
type BillingProvider interface {
	// FindCustomerByEmail returns ErrCustomerNotFound when no customer exists.
	// Any other error means the lookup itself failed.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// ListActiveSubscriptions lists live subscriptions for a customer. When no
	// active one exists it falls back to an unfiltered listing so that
	// trialing and past-due subscriptions are still found.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	CancelImmediately(ctx context.Context, subscriptionID string) error
	ScheduleCancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error

	// ParseWebhook verifies the signature before decoding anything.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// Customer is a billing provider customer.
type Customer struct {
	ID    string
	Email string
}

// ProviderStatus is the raw provider subscription status.
type ProviderStatus string

const (
	ProviderStatusActive            ProviderStatus = "active"
	ProviderStatusTrialing          ProviderStatus = "trialing"
	ProviderStatusPastDue           ProviderStatus = "past_due"
	ProviderStatusCanceled          ProviderStatus = "canceled"
	ProviderStatusUnpaid            ProviderStatus = "unpaid"
	ProviderStatusIncomplete        ProviderStatus = "incomplete"
	ProviderStatusIncompleteExpired ProviderStatus = "incomplete_expired"
	ProviderStatusPaused            ProviderStatus = "paused"
)

// Live reports whether the subscription currently grants access.
func (s ProviderStatus) Live() bool {
	switch s {
	case ProviderStatusActive, ProviderStatusTrialing, ProviderStatusPastDue:
		return true
	}
	return false
}

func (s ProviderStatus) Collapse() SubscriptionStatus {
	switch {
	case s.Live():
		return StatusActive
	case s == ProviderStatusCanceled:
		return StatusCancelled
	}
	return StatusInactive
}

// ProviderSubscription is the provider-neutral view of a subscription.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            ProviderStatus
	PriceID           string
	UnitAmount        int64
	Currency          string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	Created           time.Time
	Metadata          map[string]string
}

// EventKind is the normalized webhook event type.
type EventKind string

const (
	EventSubscriptionCreated     EventKind = "subscription_created"
	EventSubscriptionUpdated     EventKind = "subscription_updated"
	EventSubscriptionDeleted     EventKind = "subscription_deleted"
	EventInvoicePaymentSucceeded EventKind = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    EventKind = "invoice_payment_failed"
	EventUnhandled               EventKind = "unhandled"
)

func (k EventKind) subscriptionEvent() bool {
	return k == EventSubscriptionCreated || k == EventSubscriptionUpdated || k == EventSubscriptionDeleted
}

func (k EventKind) invoiceEvent() bool {
	return k == EventInvoicePaymentSucceeded || k == EventInvoicePaymentFailed
}

// InvoiceRef is the part of an invoice event the service acts on.
type InvoiceRef struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// WebhookEvent is a tagged variant: Subscription is set for subscription
// kinds, Invoice for invoice kinds, neither for EventUnhandled.
type WebhookEvent struct {
	ID           string
	Kind         EventKind
	ProviderType string
	Subscription *ProviderSubscription
	Invoice      *InvoiceRef
	CreatedAt    time.Time
}

// Validate enforces the variant shape.
func (e *WebhookEvent) Validate() error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}
	switch {
	case e.Kind.subscriptionEvent():
		if e.Subscription == nil || e.Invoice != nil {
			return fmt.Errorf("%w: %s must carry a subscription", ErrInvalidPayload, e.ProviderType)
		}
		if e.Subscription.ID == "" || e.Subscription.CustomerID == "" {
			return fmt.Errorf("%w: subscription id and customer are required", ErrInvalidPayload)
		}
	case e.Kind.invoiceEvent():
		if e.Invoice == nil || e.Subscription != nil {
			return fmt.Errorf("%w: %s must carry an invoice", ErrInvalidPayload, e.ProviderType)
		}
		if e.Invoice.ID == "" {
			return fmt.Errorf("%w: invoice id is required", ErrInvalidPayload)
		}
	case e.Kind == EventUnhandled:
	default:
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidPayload, e.Kind)
	}
	return nil
}
