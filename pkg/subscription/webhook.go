package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/petvoice/subscriptions/pkg/logger"
)

// WebhookOutcome describes what HandleWebhook did with an accepted event.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// MetadataUserID is the subscription metadata key carrying our user id.
const MetadataUserID = "user_id"

// HandleWebhook verifies, de-duplicates and applies one provider event.
// Signature failures are logged for audit and nothing else happens.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err == nil {
		err = event.Validate()
	}
	if err != nil {
		if errors.Is(err, ErrSignatureVerification) {
			s.log.WarnContext(ctx, "webhook signature rejected",
				logger.Component("audit"), "payload_bytes", len(payload), logger.Error(err))
			s.metrics.webhook(EventUnhandled, "bad_signature")
		} else {
			s.log.WarnContext(ctx, "webhook payload rejected", logger.Error(err))
			s.metrics.webhook(EventUnhandled, "invalid")
		}
		return "", err
	}

	log := s.log.With(logger.EventID(event.ID), logger.EventType(event.ProviderType))

	claim, err := s.deduper.Claim(ctx, event.ID)
	if err != nil {
		return "", errors.Join(ErrStore, err)
	}
	switch claim {
	case ClaimDuplicate:
		log.InfoContext(ctx, "duplicate webhook event skipped")
		s.metrics.webhook(event.Kind, string(WebhookDuplicate))
		return WebhookDuplicate, nil
	case ClaimInFlight:
		s.metrics.webhook(event.Kind, "in_flight")
		return "", ErrEventInFlight
	}

	// Settling the claim must not depend on the caller still waiting.
	settleCtx := context.WithoutCancel(ctx)

	outcome, err := s.applyEvent(ctx, event)
	if err != nil {
		if rerr := s.deduper.Release(settleCtx, event.ID); rerr != nil {
			log.ErrorContext(ctx, "failed to release webhook claim", logger.Error(rerr))
		}
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		s.metrics.webhook(event.Kind, "error")
		return "", err
	}
	if err := s.deduper.Complete(settleCtx, event.ID); err != nil {
		log.ErrorContext(ctx, "failed to mark webhook processed", logger.Error(err))
	}

	log.InfoContext(ctx, "webhook event processed", "outcome", outcome)
	s.metrics.webhook(event.Kind, string(outcome))
	return outcome, nil
}

func (s *Service) applyEvent(ctx context.Context, event *WebhookEvent) (WebhookOutcome, error) {
	switch event.Kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.applySubscription(ctx, event.Kind, *event.Subscription)
	case EventSubscriptionDeleted:
		return s.applyDeleted(ctx, *event.Subscription)
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		if event.Invoice.SubscriptionID == "" {
			return WebhookIgnored, nil
		}
		ps, err := s.provider.GetSubscription(ctx, event.Invoice.SubscriptionID)
		if err != nil {
			return "", providerError(err)
		}
		return s.applySubscription(ctx, EventSubscriptionUpdated, *ps)
	}
	return WebhookIgnored, nil
}

// resolveUser maps a provider subscription to a local user: metadata first,
// then the stored customer id. ok is false when neither matches.
func (s *Service) resolveUser(ctx context.Context, ps ProviderSubscription) (uuid.UUID, bool, error) {
	if raw := ps.Metadata[MetadataUserID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true, nil
		}
		s.log.WarnContext(ctx, "ignoring malformed user id in subscription metadata",
			logger.SubscriptionID(ps.ID), "value", raw)
	}
	rec, err := s.store.GetByCustomerID(ctx, ps.CustomerID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return uuid.Nil, false, nil
	case err != nil:
		return uuid.Nil, false, errors.Join(ErrStore, err)
	}
	return rec.UserID, true, nil
}

// applySubscription mirrors a created or updated subscription. A subscription
// created after the recorded cancellation starts a new lifecycle; the
// permanent reactivation lock survives it.
func (s *Service) applySubscription(ctx context.Context, kind EventKind, ps ProviderSubscription) (WebhookOutcome, error) {
	return s.withEventUser(ctx, ps, func(existing *Record) Patch {
		status := ps.Status.Collapse()
		patch := billingPatch(ps.CustomerID, TierFree, status, nil)
		if status == StatusActive {
			patch = billingPatch(ps.CustomerID, s.tiers.Resolve(ps), status, timePtr(ps.CurrentPeriodEnd))
		}

		if kind == EventSubscriptionCreated && existing != nil && existing.IsCancelled &&
			existing.CancellationDate != nil && ps.Created.After(*existing.CancellationDate) {
			patch = patch.Merge(Patch{
				Fields: FieldIsCancelled | FieldCancellationType | FieldCancellationDate | FieldCancellationEffectiveDate,
			})
		}
		return patch
	})
}

// applyDeleted records a subscription the provider has ended. The user's
// cancellation type is kept; an existing cancellation date is not moved.
func (s *Service) applyDeleted(ctx context.Context, ps ProviderSubscription) (WebhookOutcome, error) {
	return s.withEventUser(ctx, ps, func(existing *Record) Patch {
		now := timePtr(s.now())
		patch := billingPatch(ps.CustomerID, TierFree, StatusCancelled, nil)
		patch = patch.Merge(Patch{Fields: FieldIsCancelled, Values: Record{IsCancelled: true}})

		// A user-initiated cancellation keeps its own date; deletion only fills gaps.
		if existing == nil || existing.CancellationDate == nil {
			patch = patch.Merge(Patch{Fields: FieldCancellationDate, Values: Record{CancellationDate: now}})
		}
		if existing == nil || existing.CancellationEffectiveDate == nil {
			patch = patch.Merge(Patch{Fields: FieldCancellationEffectiveDate, Values: Record{CancellationEffectiveDate: now}})
		}
		return patch
	})
}

func (s *Service) withEventUser(ctx context.Context, ps ProviderSubscription, build func(existing *Record) Patch) (WebhookOutcome, error) {
	userID, ok, err := s.resolveUser(ctx, ps)
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.WarnContext(ctx, "webhook subscription has no local subscriber",
			logger.SubscriptionID(ps.ID), logger.CustomerID(ps.CustomerID))
		return WebhookIgnored, nil
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	existing, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if _, err := s.write(ctx, userID, existing, build(existing)); err != nil {
		return "", fmt.Errorf("apply subscription %s: %w", ps.ID, err)
	}
	return WebhookApplied, nil
}
