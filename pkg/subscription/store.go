package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecordStore persists subscriber records.
type RecordStore interface {
	// Get returns ErrRecordNotFound when the user has no record.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)
	// GetByCustomerID returns ErrRecordNotFound when no record carries the id.
	GetByCustomerID(ctx context.Context, customerID string) (*Record, error)
	// Upsert writes only the masked fields of patch, creating the record from
	// NewRecord defaults when it does not exist, and returns the stored result.
	Upsert(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error)
	// Delete removes the record. Used by account deletion only.
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Locker serializes work per user.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// UsageStore reads usage counters and trims pets on downgrade.
type UsageStore interface {
	CountAnalysesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	CountPets(ctx context.Context, userID uuid.UUID) (int64, error)
	// TrimPets keeps the keep earliest-created pets and deletes the rest.
	TrimPets(ctx context.Context, userID uuid.UUID, keep int) (deleted int64, err error)
}

// ClaimResult is the outcome of claiming a webhook event id.
type ClaimResult int

const (
	ClaimAcquired ClaimResult = iota
	ClaimDuplicate
	ClaimInFlight
)

// EventDeduper makes webhook processing idempotent by event id.
type EventDeduper interface {
	Claim(ctx context.Context, eventID string) (ClaimResult, error)
	// Complete marks a claimed event as processed.
	Complete(ctx context.Context, eventID string) error
	// Release drops a claim so that a redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}

// Notifier tells users about changes they made. Failures never roll back the change.
type Notifier interface {
	SubscriptionCancelled(ctx context.Context, sub Subscriber, result CancellationResult) error
	SubscriptionReactivated(ctx context.Context, sub Subscriber, periodEnd *time.Time) error
}

type noopNotifier struct{}

func (noopNotifier) SubscriptionCancelled(context.Context, Subscriber, CancellationResult) error {
	return nil
}

func (noopNotifier) SubscriptionReactivated(context.Context, Subscriber, *time.Time) error {
	return nil
}
