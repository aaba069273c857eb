package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petvoice/subscriptions/pkg/logger"
)

// Service reconciles subscriber records with the billing provider and runs
// the cancellation lifecycle.
type Service struct {
	provider BillingProvider
	store    RecordStore
	usage    UsageStore
	locker   Locker
	deduper  EventDeduper
	notifier Notifier
	tiers    *TierResolver
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time

	lifecycle *lifecycle
}

// NewService creates a Service. Panics if a required dependency is nil.
func NewService(provider BillingProvider, store RecordStore, usage UsageStore, opts ...ServiceOption) *Service {
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	if store == nil {
		panic("subscription: RecordStore is required")
	}
	if usage == nil {
		panic("subscription: UsageStore is required")
	}

	s := &Service{
		provider: provider,
		store:    store,
		usage:    usage,
		locker:   NewKeyedLocker(),
		deduper:  NewMemoryDeduper(),
		notifier: noopNotifier{},
		tiers:    NewTierResolver(DefaultTierThresholds, nil),
		log:      logger.Noop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lifecycle = s.newLifecycle()
	return s
}

// Get returns the stored record without contacting the provider.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, errors.Join(ErrStore, err)
	}
	return rec, err
}

// Status renders rec for clients with freshly computed usage.
func (s *Service) Status(ctx context.Context, rec *Record) (*Status, error) {
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	usage, err := s.usageOf(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	return rec.Status(usage), nil
}

// DeleteSubscriber removes a user's record as part of account deletion.
func (s *Service) DeleteSubscriber(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrInvalidUserID
	}
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return errors.Join(ErrStore, err)
	}
	s.log.InfoContext(ctx, "subscriber record deleted", logger.UserID(userID))
	return nil
}

// load returns the stored record or nil when none exists.
func (s *Service) load(ctx context.Context, userID uuid.UUID) (*Record, error) {
	rec, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Join(ErrStore, err)
	}
	return rec, nil
}

// write validates the record the patch would produce and stores it.
func (s *Service) write(ctx context.Context, userID uuid.UUID, existing *Record, patch Patch) (*Record, error) {
	base := NewRecord(userID)
	if existing != nil {
		base = *existing
	}
	if err := base.Apply(patch).Validate(); err != nil {
		return nil, err
	}
	rec, err := s.store.Upsert(ctx, userID, patch)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return rec, nil
}

func (s *Service) usageOf(ctx context.Context, userID uuid.UUID) (Usage, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	analyses, err := s.usage.CountAnalysesSince(ctx, userID, monthStart)
	if err != nil {
		return Usage{}, errors.Join(ErrUsage, err)
	}
	pets, err := s.usage.CountPets(ctx, userID)
	if err != nil {
		return Usage{}, errors.Join(ErrUsage, err)
	}
	return Usage{AnalysesThisMonth: analyses, TotalPets: pets}, nil
}

// liveSubscription finds the subscription currently granting access, if any.
// The stored customer id is preferred; the email is used only when none is stored.
func (s *Service) liveSubscription(ctx context.Context, sub Subscriber, rec *Record) (*ProviderSubscription, string, error) {
	customerID := ""
	if rec != nil {
		customerID = rec.BillingCustomerID
	}
	if customerID == "" && sub.Email != "" {
		c, err := s.provider.FindCustomerByEmail(ctx, sub.Email)
		switch {
		case errors.Is(err, ErrCustomerNotFound):
			return nil, "", nil
		case err != nil:
			return nil, "", providerError(err)
		}
		customerID = c.ID
	}
	if customerID == "" {
		return nil, "", nil
	}

	subs, err := s.provider.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return nil, customerID, providerError(err)
	}
	for i := range subs {
		if subs[i].Status.Live() {
			return &subs[i], customerID, nil
		}
	}
	return nil, customerID, nil
}
