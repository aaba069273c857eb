package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petvoice/subscriptions/handler"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/logger"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

// Subscriptions is the part of subscription.Service the API drives.
type Subscriptions interface {
	Check(ctx context.Context, sub subscription.Subscriber) (*subscription.Status, error)
	Cancel(ctx context.Context, sub subscription.Subscriber, kind subscription.CancellationType) (*subscription.CancellationResult, error)
	Reactivate(ctx context.Context, sub subscription.Subscriber) (*subscription.Record, error)
	Status(ctx context.Context, rec *subscription.Record) (*subscription.Status, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (subscription.WebhookOutcome, error)
}

// RouterOptions configures the billing module. Service and Verifier are
// required; a nil Limiter disables rate limiting.
type RouterOptions struct {
	Service  Subscriptions
	Verifier identity.Verifier
	Limiter  *CheckLimiter
	Logger   *slog.Logger
	Config   Config
	Now      func() time.Time
}

// Router creates the billing routes:
//
//	POST /subscription/check
//	POST /subscription/cancel
//	POST /subscription/reactivate
//	POST /webhooks/billing
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing.Router: Service is required")
	}
	if opts.Verifier == nil {
		panic("billing.Router: Verifier is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Config.MaxBodyBytes <= 0 {
		opts.Config.MaxBodyBytes = 64 << 10
	}
	if opts.Config.WebhookMaxBodyBytes <= 0 {
		opts.Config.WebhookMaxBodyBytes = 512 << 10
	}

	h := &handlers{
		svc:     opts.Service,
		limiter: opts.Limiter,
		log:     opts.Logger.With(logger.Component("billing_api")),
		now:     opts.Now,
	}
	onError := handler.NewErrorHandler(opts.Logger, mapError)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(opts.Verifier, identity.ErrorHandler(onError)))

		r.Post("/subscription/check", handler.Wrap(h.check,
			handler.WithErrorHandler[struct{}](onError),
		))
		r.Post("/subscription/cancel", handler.Wrap(h.cancel,
			handler.WithBinder[cancelRequest](handler.JSONBody(opts.Config.MaxBodyBytes)),
			handler.WithErrorHandler[cancelRequest](onError),
		))
		r.Post("/subscription/reactivate", handler.Wrap(h.reactivate,
			handler.WithErrorHandler[struct{}](onError),
		))
	})

	r.Post("/webhooks/billing", handler.Wrap(h.webhook,
		handler.WithBinder[[]byte](handler.RawBody(opts.Config.WebhookMaxBodyBytes)),
		handler.WithErrorHandler[[]byte](onError),
	))

	return r
}
