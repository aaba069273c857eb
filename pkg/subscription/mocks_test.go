package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/subscriptions/pkg/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) FindCustomerByEmail(ctx context.Context, email string) (*subscription.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(*subscription.Customer)
	return c, args.Error(1)
}

func (m *mockProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]subscription.ProviderSubscription, error) {
	args := m.Called(ctx, customerID)
	subs, _ := args.Get(0).([]subscription.ProviderSubscription)
	return subs, args.Error(1)
}

func (m *mockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	s, _ := args.Get(0).(*subscription.ProviderSubscription)
	return s, args.Error(1)
}

func (m *mockProvider) CancelImmediately(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockProvider) ScheduleCancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockProvider) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	e, _ := args.Get(0).(*subscription.WebhookEvent)
	return e, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SubscriptionCancelled(ctx context.Context, sub subscription.Subscriber, result subscription.CancellationResult) error {
	return m.Called(ctx, sub, result).Error(0)
}

func (m *mockNotifier) SubscriptionReactivated(ctx context.Context, sub subscription.Subscriber, periodEnd *time.Time) error {
	return m.Called(ctx, sub, periodEnd).Error(0)
}

var (
	may1      = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	may15     = time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	may20     = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	periodEnd = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

const (
	testEmail      = "owner@example.com"
	testCustomerID = "cus_123"
	testSubID      = "sub_123"
)

func premiumSubscription() subscription.ProviderSubscription {
	return subscription.ProviderSubscription{
		ID:               testSubID,
		CustomerID:       testCustomerID,
		Status:           subscription.ProviderStatusActive,
		PriceID:          "price_premium",
		UnitAmount:       99,
		Currency:         "eur",
		CurrentPeriodEnd: periodEnd,
		Created:          time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	provider *mockProvider
	store    *subscription.MemoryStore
	usage    *subscription.MemoryUsage
	deduper  *subscription.MemoryDeduper
	svc      *subscription.Service
	sub      subscription.Subscriber
	clock    time.Time
}

func newFixture(t *testing.T, opts ...subscription.ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		provider: &mockProvider{},
		store:    subscription.NewMemoryStore(),
		usage:    subscription.NewMemoryUsage(),
		deduper:  subscription.NewMemoryDeduper(),
		sub:      subscription.Subscriber{UserID: uuid.New(), Email: testEmail},
		clock:    may1,
	}
	opts = append([]subscription.ServiceOption{
		subscription.WithClock(func() time.Time { return f.clock }),
		subscription.WithDeduper(f.deduper),
	}, opts...)
	f.svc = subscription.NewService(f.provider, f.store, f.usage, opts...)
	t.Cleanup(func() { f.provider.AssertExpectations(t) })
	return f
}

// withActiveSubscription makes the provider report a live premium subscription.
func (f *fixture) withActiveSubscription() {
	f.provider.On("FindCustomerByEmail", mock.Anything, testEmail).
		Return(&subscription.Customer{ID: testCustomerID, Email: testEmail}, nil).Maybe()
	f.provider.On("ListActiveSubscriptions", mock.Anything, testCustomerID).
		Return([]subscription.ProviderSubscription{premiumSubscription()}, nil).Maybe()
}

func (f *fixture) record(t *testing.T) *subscription.Record {
	t.Helper()
	rec, err := f.store.Get(context.Background(), f.sub.UserID)
	require.NoError(t, err)
	return rec
}

type cancellationFields struct {
	IsCancelled   bool
	Type          subscription.CancellationType
	Date          *time.Time
	Effective     *time.Time
	CanReactivate bool
	AfterPeriod   bool
}

func cancellationOf(r *subscription.Record) cancellationFields {
	return cancellationFields{
		IsCancelled:   r.IsCancelled,
		Type:          r.CancellationType,
		Date:          r.CancellationDate,
		Effective:     r.CancellationEffectiveDate,
		CanReactivate: r.CanReactivate,
		AfterPeriod:   r.ImmediateCancellationAfterPeriodEnd,
	}
}
