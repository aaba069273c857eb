// Package redis connects the service to Redis through go-redis and provides
// the shared webhook event de-duplication ledger.
//
// Connect retries until the server answers a PING. Healthcheck adapts a
// client to the readiness probe signature. EventDeduper records which
// provider webhook events are being processed or are already done, so that
// every replica applies an event at most once.
package redis
