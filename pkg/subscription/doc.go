// Package subscription keeps a local subscriber record in step with the
// billing provider and exposes the normalized subscription state used for
// access decisions.
//
// The provider (Stripe) is the source of truth for plan, status and period
// end. Cancellation metadata is owned locally: reconciliation writes only the
// billing-derived fields of a record, while the cancellation orchestrator and
// the webhook handler are the only writers of cancellation fields.
//
// Main entry points on *Service:
//
//   - Check reconciles a subscriber against the provider and returns Status.
//   - Cancel and Reactivate drive the cancellation lifecycle.
//   - HandleWebhook verifies and applies provider push events.
//
// Storage, usage counters, event de-duplication and notifications are
// injected through the interfaces in store.go. In-memory implementations are
// provided for tests and local development; Postgres and Redis backed ones
// live in svc/subscription and pkg/redis.
package subscription
