package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/petvoice/subscriptions/pkg/logger"
)

type lifecycleEvent string

const (
	eventCancelImmediate   lifecycleEvent = "cancel_immediate"
	eventCancelEndOfPeriod lifecycleEvent = "cancel_end_of_period"
	eventReactivate        lifecycleEvent = "reactivate"
)

func cancelEvent(t CancellationType) lifecycleEvent {
	if t == CancellationImmediate {
		return eventCancelImmediate
	}
	return eventCancelEndOfPeriod
}

type lifecycleState struct {
	status       SubscriptionStatus
	cancellation CancellationType
}

func stateOf(r Record) lifecycleState {
	return lifecycleState{status: r.SubscriptionStatus, cancellation: r.CancellationType}
}

func (s lifecycleState) String() string {
	c := string(s.cancellation)
	if c == "" {
		c = "none"
	}
	return string(s.status) + "/" + c
}

// transitionInput is what guards and actions see.
type transitionInput struct {
	record     Record
	subscriber Subscriber
	live       *ProviderSubscription
	now        time.Time
}

// guard must pass for its transition to be chosen.
type guard func(in *transitionInput) bool

// action runs before the record changes. An error aborts the transition.
type action func(ctx context.Context, in *transitionInput) error

type transition struct {
	event   lifecycleEvent
	guards  []guard
	actions []action
	patch   func(in *transitionInput) Patch
}

// lifecycle is the cancellation state machine. Transitions for a state are
// tried in order; the first whose guards pass runs its actions and yields the
// patch to store.
type lifecycle struct {
	transitions map[lifecycleState][]transition
}

func (l *lifecycle) fire(ctx context.Context, event lifecycleEvent, in *transitionInput) (Patch, error) {
	from := stateOf(in.record)
	for _, t := range l.transitions[from] {
		if t.event != event || !passes(t.guards, in) {
			continue
		}
		for _, act := range t.actions {
			if err := act(ctx, in); err != nil {
				return Patch{}, err
			}
		}
		return t.patch(in), nil
	}
	return Patch{}, fmt.Errorf("%w: %s on %s", ErrTransitionRejected, event, from)
}

func passes(guards []guard, in *transitionInput) bool {
	for _, g := range guards {
		if !g(in) {
			return false
		}
	}
	return true
}

func hasLive(in *transitionInput) bool       { return in.live != nil }
func noLive(in *transitionInput) bool        { return in.live == nil }
func reactivatable(in *transitionInput) bool { return in.record.CanReactivate }

func (s *Service) newLifecycle() *lifecycle {
	active := lifecycleState{status: StatusActive}
	scheduled := lifecycleState{status: StatusActive, cancellation: CancellationEndOfPeriod}

	return &lifecycle{transitions: map[lifecycleState][]transition{
		active: {
			{
				event:   eventCancelImmediate,
				guards:  []guard{hasLive},
				actions: []action{s.cancelOnProvider, s.trimPets},
				patch:   immediatePatch(false),
			},
			{
				event:   eventCancelImmediate,
				guards:  []guard{noLive},
				actions: []action{s.trimPets},
				patch:   immediatePatch(false),
			},
			{
				event:   eventCancelEndOfPeriod,
				guards:  []guard{hasLive},
				actions: []action{s.scheduleOnProvider},
				patch:   endOfPeriodPatch,
			},
			{
				event:  eventCancelEndOfPeriod,
				guards: []guard{noLive},
				patch:  localEndOfPeriodPatch,
			},
		},
		scheduled: {
			{
				event:   eventCancelImmediate,
				guards:  []guard{hasLive},
				actions: []action{s.cancelOnProvider, s.trimPets},
				patch:   immediatePatch(true),
			},
			{
				event:   eventCancelImmediate,
				guards:  []guard{noLive},
				actions: []action{s.trimPets},
				patch:   immediatePatch(true),
			},
			{
				event:   eventReactivate,
				guards:  []guard{reactivatable, hasLive},
				actions: []action{s.resumeOnProvider},
				patch:   reactivatePatch,
			},
		},
	}}
}

func (s *Service) cancelOnProvider(ctx context.Context, in *transitionInput) error {
	if err := s.provider.CancelImmediately(ctx, in.live.ID); err != nil {
		return providerError(err)
	}
	return nil
}

func (s *Service) scheduleOnProvider(ctx context.Context, in *transitionInput) error {
	if err := s.provider.ScheduleCancelAtPeriodEnd(ctx, in.live.ID); err != nil {
		return providerError(err)
	}
	return nil
}

func (s *Service) resumeOnProvider(ctx context.Context, in *transitionInput) error {
	if err := s.provider.ResumeSubscription(ctx, in.live.ID); err != nil {
		return providerError(err)
	}
	return nil
}

// trimPets keeps only the earliest-created pet after an immediate downgrade.
func (s *Service) trimPets(ctx context.Context, in *transitionInput) error {
	deleted, err := s.usage.TrimPets(ctx, in.subscriber.UserID, 1)
	if err != nil {
		return fmt.Errorf("%w: trim pets: %w", ErrUsage, err)
	}
	if deleted > 0 {
		s.log.InfoContext(ctx, "pets trimmed after immediate cancellation",
			logger.UserID(in.subscriber.UserID), "deleted", deleted)
	}
	return nil
}

// immediatePatch ends access now. Coming from a scheduled cancellation it also
// disables reactivation for good.
func immediatePatch(afterPeriodEnd bool) func(in *transitionInput) Patch {
	return func(in *transitionInput) Patch {
		now := timePtr(in.now)
		p := Patch{
			Fields: FieldSubscriptionStatus | FieldIsCancelled | FieldCancellationType |
				FieldCancellationDate | FieldCancellationEffectiveDate | FieldCanReactivate,
			Values: Record{
				SubscriptionStatus:        StatusCancelled,
				IsCancelled:               true,
				CancellationType:          CancellationImmediate,
				CancellationDate:          now,
				CancellationEffectiveDate: now,
				CanReactivate:             false,
			},
		}
		if afterPeriodEnd {
			p.Fields |= FieldImmediateCancellationAfterPeriodEnd
			p.Values.ImmediateCancellationAfterPeriodEnd = true
		}
		return p
	}
}

// endOfPeriodPatch keeps access until the provider's period end. The stored
// end date is refreshed from the provider so the effective date matches it.
// CanReactivate is left alone: once disabled it stays disabled.
func endOfPeriodPatch(in *transitionInput) Patch {
	end := timePtr(in.live.CurrentPeriodEnd)
	return Patch{
		Fields: FieldSubscriptionEndDate | FieldIsCancelled | FieldCancellationType |
			FieldCancellationDate | FieldCancellationEffectiveDate,
		Values: Record{
			SubscriptionEndDate:       end,
			IsCancelled:               true,
			CancellationType:          CancellationEndOfPeriod,
			CancellationDate:          timePtr(in.now),
			CancellationEffectiveDate: end,
		},
	}
}

// localEndOfPeriodPatch records a scheduled cancellation the provider no
// longer knows about. Access ends at the stored period end, or now without one.
func localEndOfPeriodPatch(in *transitionInput) Patch {
	effective := timePtr(in.now)
	if in.record.SubscriptionEndDate != nil && in.record.SubscriptionEndDate.After(in.now) {
		effective = timePtr(*in.record.SubscriptionEndDate)
	}
	return Patch{
		Fields: FieldSubscriptionStatus | FieldIsCancelled | FieldCancellationType |
			FieldCancellationDate | FieldCancellationEffectiveDate,
		Values: Record{
			SubscriptionStatus:        StatusCancelled,
			IsCancelled:               true,
			CancellationType:          CancellationEndOfPeriod,
			CancellationDate:          timePtr(in.now),
			CancellationEffectiveDate: effective,
		},
	}
}

func reactivatePatch(*transitionInput) Patch {
	return Patch{
		Fields: FieldSubscriptionStatus | FieldIsCancelled | FieldCancellationType |
			FieldCancellationDate | FieldCancellationEffectiveDate,
		Values: Record{SubscriptionStatus: StatusActive},
	}
}
