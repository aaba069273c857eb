// Package billing mounts the subscription HTTP API: reconciliation,
// cancellation, reactivation and the billing provider webhook.
//
//	r := chi.NewRouter()
//	r.Mount("/", billing.Router(billing.RouterOptions{
//		Service:  svc,
//		Verifier: verifier,
//		Limiter:  billing.NewCheckLimiter(cfg),
//		Logger:   log,
//	}))
//
// Subscription routes require a bearer token. The webhook route is
// authenticated by its signature header instead.
package billing
