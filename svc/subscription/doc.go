// Package subscription holds the Postgres-backed stores and the email
// notifier behind the subscription service.
//
// Store is the RecordStore: every write is a single
// INSERT ... ON CONFLICT DO UPDATE that sets only the columns named in the
// patch mask, so reconciliation and webhook writers never overwrite each
// other's fields. Usage counts pets and monthly analyses and trims pets after
// an immediate cancellation. Locker serializes per-user lifecycle work across
// replicas with Postgres advisory locks. The schema lives in migrations/.
package subscription
