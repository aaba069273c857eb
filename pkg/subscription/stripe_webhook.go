package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

// Stripe event types the service acts on.
const (
	stripeSubscriptionCreated     = "customer.subscription.created"
	stripeSubscriptionUpdated     = "customer.subscription.updated"
	stripeSubscriptionDeleted     = "customer.subscription.deleted"
	stripeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	stripeInvoicePaymentFailed    = "invoice.payment_failed"
)

var stripeEventKinds = map[string]EventKind{
	stripeSubscriptionCreated:     EventSubscriptionCreated,
	stripeSubscriptionUpdated:     EventSubscriptionUpdated,
	stripeSubscriptionDeleted:     EventSubscriptionDeleted,
	stripeInvoicePaymentSucceeded: EventInvoicePaymentSucceeded,
	stripeInvoicePaymentFailed:    EventInvoicePaymentFailed,
}

type stripeEventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeSubscriptionObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Created           int64             `json:"created"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID         string `json:"id"`
				UnitAmount *int64 `json:"unit_amount"`
				Currency   string `json:"currency"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Nothing in the payload is read before the signature checks out.
func (p *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if err := stripewebhook.ValidatePayloadWithTolerance(payload, signature, p.webhookSecret, p.tolerance); err != nil {
		return nil, errors.Join(ErrSignatureVerification, err)
	}

	var env stripeEventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	event := &WebhookEvent{
		ID:           env.ID,
		ProviderType: env.Type,
		Kind:         EventUnhandled,
		CreatedAt:    time.Unix(env.Created, 0).UTC(),
	}
	kind, ok := stripeEventKinds[env.Type]
	if !ok {
		if err := event.Validate(); err != nil {
			return nil, err
		}
		return event, nil
	}
	event.Kind = kind
	if len(env.Data.Object) == 0 {
		return nil, fmt.Errorf("%w: %s has no data object", ErrInvalidPayload, env.Type)
	}

	switch {
	case kind.subscriptionEvent():
		var obj stripeSubscriptionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		ps, err := p.subscriptionFromEvent(ctx, obj)
		if err != nil {
			return nil, err
		}
		event.Subscription = &ps
	case kind.invoiceEvent():
		var obj stripeInvoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		subID := obj.Subscription
		if subID == "" {
			subID = obj.Parent.SubscriptionDetails.Subscription
		}
		event.Invoice = &InvoiceRef{ID: obj.ID, CustomerID: obj.Customer, SubscriptionID: subID}
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func (p *StripeProvider) subscriptionFromEvent(ctx context.Context, obj stripeSubscriptionObject) (ProviderSubscription, error) {
	ps := ProviderSubscription{
		ID:                obj.ID,
		CustomerID:        obj.Customer,
		Status:            ProviderStatus(obj.Status),
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		Created:           time.Unix(obj.Created, 0).UTC(),
		Metadata:          obj.Metadata,
	}
	if ps.ID == "" || ps.CustomerID == "" || ps.Status == "" {
		return ps, fmt.Errorf("%w: subscription id, customer and status are required", ErrInvalidPayload)
	}

	periodEnd := obj.CurrentPeriodEnd
	if len(obj.Items.Data) > 0 {
		item := obj.Items.Data[0]
		if item.CurrentPeriodEnd != 0 {
			periodEnd = item.CurrentPeriodEnd
		}
		ps.PriceID = item.Price.ID
		ps.Currency = item.Price.Currency
		if item.Price.ID != "" {
			amount, err := p.unitAmount(ctx, item.Price.ID, item.Price.UnitAmount)
			if err != nil {
				return ps, err
			}
			ps.UnitAmount = amount
		}
	}
	if periodEnd != 0 {
		ps.CurrentPeriodEnd = time.Unix(periodEnd, 0).UTC()
	}
	return ps, nil
}
