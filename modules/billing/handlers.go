package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/petvoice/subscriptions/handler"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

type handlers struct {
	svc     Subscriptions
	limiter *CheckLimiter
	log     *slog.Logger
	now     func() time.Time
}

// CheckResponse is the reconciled status plus the access-gate decision.
type CheckResponse struct {
	*subscription.Status
	Blocked bool `json:"blocked"`
}

type cancelRequest struct {
	Type string `json:"type"`
}

type WebhookResponse struct {
	Received bool                        `json:"received"`
	Outcome  subscription.WebhookOutcome `json:"outcome"`
}

func subscriberFrom(r *http.Request) (subscription.Subscriber, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		return subscription.Subscriber{}, false
	}
	return subscription.Subscriber{UserID: id.UserID, Email: id.Email}, true
}

func (h *handlers) check(r *http.Request, _ struct{}) handler.Response {
	sub, ok := subscriberFrom(r)
	if !ok {
		return handler.JSONError(errMissingIdentity)
	}
	if !h.limiter.Allow(sub.UserID, h.now()) {
		return handler.JSONError(errRateLimited)
	}

	status, err := h.svc.Check(r.Context(), sub)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(CheckResponse{Status: status, Blocked: subscription.IsBlocked(status)})
}

func (h *handlers) cancel(r *http.Request, req cancelRequest) handler.Response {
	sub, ok := subscriberFrom(r)
	if !ok {
		return handler.JSONError(errMissingIdentity)
	}
	kind, err := subscription.ParseCancellationType(req.Type)
	if err != nil {
		return handler.JSONError(err)
	}

	res, err := h.svc.Cancel(r.Context(), sub, kind)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(res)
}

func (h *handlers) reactivate(r *http.Request, _ struct{}) handler.Response {
	sub, ok := subscriberFrom(r)
	if !ok {
		return handler.JSONError(errMissingIdentity)
	}

	rec, err := h.svc.Reactivate(r.Context(), sub)
	if err != nil {
		return handler.JSONError(err)
	}
	status, err := h.svc.Status(r.Context(), rec)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(status)
}

func (h *handlers) webhook(r *http.Request, payload []byte) handler.Response {
	outcome, err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		return handler.JSONError(err)
	}
	h.log.DebugContext(r.Context(), "webhook acknowledged", slog.String("outcome", string(outcome)))
	return handler.JSON(WebhookResponse{Received: true, Outcome: outcome})
}
