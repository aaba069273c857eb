package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/petvoice/subscriptions/pkg/logger"
)

// Check pulls the subscriber's state from the billing provider, merges the
// billing-derived fields into the stored record and returns the normalized
// status. Cancellation fields are never written here. Nothing is written
// unless every provider and usage read succeeded.
func (s *Service) Check(ctx context.Context, sub Subscriber) (*Status, error) {
	status, err := s.check(ctx, sub)
	switch {
	case err != nil:
		s.metrics.check("error")
	case status.Subscribed:
		s.metrics.check("subscribed")
	default:
		s.metrics.check("unsubscribed")
	}
	return status, err
}

func (s *Service) check(ctx context.Context, sub Subscriber) (*Status, error) {
	if sub.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}

	existing, err := s.load(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}

	patch, err := s.reconcilePatch(ctx, sub, existing)
	if err != nil {
		s.log.ErrorContext(ctx, "subscription reconciliation failed",
			logger.UserID(sub.UserID), logger.Error(err))
		return nil, err
	}

	usage, err := s.usageOf(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}

	rec, err := s.write(ctx, sub.UserID, existing, patch)
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "subscription reconciled",
		logger.UserID(sub.UserID),
		logger.CustomerID(rec.BillingCustomerID),
		"tier", rec.PlanTier,
		"status", rec.SubscriptionStatus,
	)
	return rec.Status(usage), nil
}

// reconcilePatch builds the billing-only patch describing the provider's view.
func (s *Service) reconcilePatch(ctx context.Context, sub Subscriber, existing *Record) (Patch, error) {
	customerID, err := s.resolveCustomer(ctx, sub, existing)
	if err != nil {
		return Patch{}, err
	}
	if customerID == "" {
		return billingPatch("", TierFree, StatusInactive, nil), nil
	}

	subs, err := s.provider.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return Patch{}, providerError(err)
	}
	for _, ps := range subs {
		if !ps.Status.Live() {
			continue
		}
		return billingPatch(customerID, s.tiers.Resolve(ps), StatusActive, timePtr(ps.CurrentPeriodEnd)), nil
	}
	return billingPatch(customerID, TierFree, StatusInactive, nil), nil
}

// resolveCustomer looks the customer up by email. A missing customer falls
// back to the id stored on the record, so an email change on either side does
// not read as "never subscribed". Lookup failures are returned, not collapsed.
func (s *Service) resolveCustomer(ctx context.Context, sub Subscriber, existing *Record) (string, error) {
	stored := ""
	if existing != nil {
		stored = existing.BillingCustomerID
	}
	if sub.Email == "" {
		return stored, nil
	}

	c, err := s.provider.FindCustomerByEmail(ctx, sub.Email)
	switch {
	case err == nil:
		if stored != "" && stored != c.ID {
			s.log.WarnContext(ctx, "billing customer changed for subscriber",
				logger.UserID(sub.UserID), logger.CustomerID(c.ID), "previous_customer_id", stored)
		}
		return c.ID, nil
	case errors.Is(err, ErrCustomerNotFound):
		if stored != "" {
			s.log.WarnContext(ctx, "no billing customer for email, using stored customer id",
				logger.UserID(sub.UserID), logger.CustomerID(stored))
		}
		return stored, nil
	}
	return "", providerError(err)
}
