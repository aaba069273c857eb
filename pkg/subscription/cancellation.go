package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/petvoice/subscriptions/pkg/logger"
)

// Cancel cancels the subscriber's subscription immediately or at period end.
//
// Repeating a cancellation that is already recorded returns the stored result
// without calling the provider. When the provider has no live subscription
// left the cancellation is recorded locally only.
func (s *Service) Cancel(ctx context.Context, sub Subscriber, kind CancellationType) (*CancellationResult, error) {
	result, err := s.cancel(ctx, sub, kind)
	s.metrics.cancellation(kind, err)
	return result, err
}

func (s *Service) cancel(ctx context.Context, sub Subscriber, kind CancellationType) (*CancellationResult, error) {
	if _, err := ParseCancellationType(string(kind)); err != nil {
		return nil, err
	}
	if sub.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}

	unlock, err := s.locker.Lock(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.load(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w to cancel", ErrNoActiveSubscription)
	}

	switch {
	case rec.CancellationType == CancellationImmediate:
		return rec.cancellationResult(), nil
	case rec.CancellationType == kind:
		return rec.cancellationResult(), nil
	case rec.SubscriptionStatus != StatusActive:
		return nil, fmt.Errorf("%w to cancel", ErrNoActiveSubscription)
	}

	live, _, err := s.liveSubscription(ctx, sub, rec)
	if err != nil {
		return nil, err
	}

	in := &transitionInput{record: *rec, subscriber: sub, live: live, now: s.now()}
	patch, err := s.lifecycle.fire(ctx, cancelEvent(kind), in)
	if err != nil {
		if errors.Is(err, ErrTransitionRejected) {
			return nil, errors.Join(ErrNoActiveSubscription, err)
		}
		s.log.ErrorContext(ctx, "cancellation failed", logger.UserID(sub.UserID), logger.Error(err))
		return nil, err
	}

	updated, err := s.write(ctx, sub.UserID, rec, patch)
	if err != nil {
		return nil, err
	}

	result := updated.cancellationResult()
	attrs := []any{logger.UserID(sub.UserID), "type", kind, "local_only", live == nil}
	if live != nil {
		attrs = append(attrs, logger.SubscriptionID(live.ID))
	}
	s.log.InfoContext(ctx, "subscription cancelled", attrs...)

	if err := s.notifier.SubscriptionCancelled(ctx, sub, *result); err != nil {
		s.log.WarnContext(ctx, "cancellation notification failed", logger.UserID(sub.UserID), logger.Error(err))
	}
	return result, nil
}

// Reactivate withdraws a scheduled end-of-period cancellation.
func (s *Service) Reactivate(ctx context.Context, sub Subscriber) (*Record, error) {
	rec, err := s.reactivate(ctx, sub)
	s.metrics.reactivation(err)
	return rec, err
}

func (s *Service) reactivate(ctx context.Context, sub Subscriber) (*Record, error) {
	if sub.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}

	unlock, err := s.locker.Lock(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.load(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	switch {
	case rec == nil:
		return nil, fmt.Errorf("%w to reactivate", ErrNoActiveSubscription)
	case rec.CancellationType != CancellationEndOfPeriod:
		return nil, fmt.Errorf("%w: no scheduled cancellation", ErrNotReactivatable)
	case !rec.CanReactivate:
		return nil, fmt.Errorf("%w: reactivation disabled after immediate cancellation", ErrNotReactivatable)
	case rec.SubscriptionStatus != StatusActive:
		return nil, fmt.Errorf("%w to reactivate", ErrNoActiveSubscription)
	}

	live, _, err := s.liveSubscription(ctx, sub, rec)
	if err != nil {
		return nil, err
	}
	if live == nil {
		return nil, fmt.Errorf("%w to reactivate", ErrNoActiveSubscription)
	}

	in := &transitionInput{record: *rec, subscriber: sub, live: live, now: s.now()}
	patch, err := s.lifecycle.fire(ctx, eventReactivate, in)
	if err != nil {
		if errors.Is(err, ErrTransitionRejected) {
			return nil, errors.Join(ErrNotReactivatable, err)
		}
		s.log.ErrorContext(ctx, "reactivation failed", logger.UserID(sub.UserID), logger.Error(err))
		return nil, err
	}

	updated, err := s.write(ctx, sub.UserID, rec, patch)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription reactivated",
		logger.UserID(sub.UserID), logger.SubscriptionID(live.ID))
	if err := s.notifier.SubscriptionReactivated(ctx, sub, updated.SubscriptionEndDate); err != nil {
		s.log.WarnContext(ctx, "reactivation notification failed", logger.UserID(sub.UserID), logger.Error(err))
	}
	return updated, nil
}
