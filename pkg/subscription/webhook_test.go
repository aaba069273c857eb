package subscription_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/subscriptions/pkg/subscription"
)

var webhookPayload = []byte(`{"id":"evt_1"}`)

const webhookSignature = "t=1,v1=abc"

func (f *fixture) deliver(event *subscription.WebhookEvent) {
	f.provider.On("ParseWebhook", mock.Anything, webhookPayload, webhookSignature).Return(event, nil).Once()
}

func subscriptionEvent(id string, kind subscription.EventKind, ps subscription.ProviderSubscription) *subscription.WebhookEvent {
	return &subscription.WebhookEvent{
		ID:           id,
		Kind:         kind,
		ProviderType: "customer." + string(kind),
		Subscription: &ps,
		CreatedAt:    may1,
	}
}

func TestService_HandleWebhook_SignatureRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	subscribed(t, f)
	before := *f.record(t)

	f.provider.On("ParseWebhook", mock.Anything, webhookPayload, "forged").
		Return(nil, fmt.Errorf("%w: bad mac", subscription.ErrSignatureVerification)).Once()

	_, err := f.svc.HandleWebhook(context.Background(), webhookPayload, "forged")
	assert.ErrorIs(t, err, subscription.ErrSignatureVerification)
	assert.Equal(t, before, *f.record(t))
}

func TestService_HandleWebhook_InvalidShape(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deliver(&subscription.WebhookEvent{ID: "evt_bad", Kind: subscription.EventSubscriptionUpdated})

	_, err := f.svc.HandleWebhook(context.Background(), webhookPayload, webhookSignature)
	assert.ErrorIs(t, err, subscription.ErrInvalidPayload)
}

func TestService_HandleWebhook_Updated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("duplicate delivery is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		event := subscriptionEvent("evt_dup", subscription.EventSubscriptionUpdated, premiumSubscription())
		f.provider.On("ParseWebhook", mock.Anything, webhookPayload, webhookSignature).Return(event, nil).Twice()

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)

		outcome, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookDuplicate, outcome)
	})

	t.Run("same state twice is stable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		ps := premiumSubscription()
		ps.UnitAmount = 199
		f.deliver(subscriptionEvent("evt_a", subscription.EventSubscriptionUpdated, ps))
		f.deliver(subscriptionEvent("evt_b", subscription.EventSubscriptionUpdated, ps))

		_, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		first := *f.record(t)

		_, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		second := *f.record(t)

		assert.Equal(t, subscription.TierFamily, second.PlanTier)
		first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
		assert.Equal(t, first, second)
	})

	t.Run("past due keeps access", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		ps := premiumSubscription()
		ps.Status = subscription.ProviderStatusPastDue
		f.deliver(subscriptionEvent("evt_pd", subscription.EventSubscriptionUpdated, ps))

		_, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, f.record(t).SubscriptionStatus)
	})

	t.Run("keeps cancellation fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		f.provider.On("ScheduleCancelAtPeriodEnd", mock.Anything, testSubID).Return(nil).Once()
		_, err := f.svc.Cancel(ctx, f.sub, subscription.CancellationEndOfPeriod)
		require.NoError(t, err)
		before := cancellationOf(f.record(t))

		ps := premiumSubscription()
		ps.CancelAtPeriodEnd = true
		f.deliver(subscriptionEvent("evt_cp", subscription.EventSubscriptionUpdated, ps))
		_, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, before, cancellationOf(f.record(t)))
	})
}

func TestService_HandleWebhook_Deleted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without prior cancellation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		ps := premiumSubscription()
		ps.Status = subscription.ProviderStatusCanceled
		f.deliver(subscriptionEvent("evt_del", subscription.EventSubscriptionDeleted, ps))

		f.clock = may20
		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)

		rec := f.record(t)
		assert.Equal(t, subscription.TierFree, rec.PlanTier)
		assert.Equal(t, subscription.StatusCancelled, rec.SubscriptionStatus)
		assert.Nil(t, rec.SubscriptionEndDate)
		assert.True(t, rec.IsCancelled)
		assert.Equal(t, subscription.CancellationNone, rec.CancellationType)
		assert.True(t, may20.Equal(*rec.CancellationDate))
		assert.True(t, may20.Equal(*rec.CancellationEffectiveDate))
	})

	t.Run("after scheduled cancellation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		f.provider.On("ScheduleCancelAtPeriodEnd", mock.Anything, testSubID).Return(nil).Once()
		_, err := f.svc.Cancel(ctx, f.sub, subscription.CancellationEndOfPeriod)
		require.NoError(t, err)

		ps := premiumSubscription()
		ps.Status = subscription.ProviderStatusCanceled
		f.deliver(subscriptionEvent("evt_del", subscription.EventSubscriptionDeleted, ps))
		f.clock = periodEnd
		_, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)

		rec := f.record(t)
		assert.Equal(t, subscription.CancellationEndOfPeriod, rec.CancellationType)
		assert.True(t, may1.Equal(*rec.CancellationDate))
		assert.True(t, periodEnd.Equal(*rec.CancellationEffectiveDate))
		assert.True(t, rec.CanReactivate)
		assert.Equal(t, subscription.StatusCancelled, rec.SubscriptionStatus)
	})
}

func TestService_HandleWebhook_Invoice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refetches the subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		ps := premiumSubscription()
		ps.Status = subscription.ProviderStatusUnpaid
		f.provider.On("GetSubscription", mock.Anything, testSubID).Return(&ps, nil).Once()
		f.deliver(&subscription.WebhookEvent{
			ID:           "evt_inv",
			Kind:         subscription.EventInvoicePaymentFailed,
			ProviderType: "invoice.payment_failed",
			Invoice:      &subscription.InvoiceRef{ID: "in_1", CustomerID: testCustomerID, SubscriptionID: testSubID},
		})

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)
		rec := f.record(t)
		assert.Equal(t, subscription.StatusInactive, rec.SubscriptionStatus)
		assert.Equal(t, subscription.TierFree, rec.PlanTier)
	})

	t.Run("without subscription is ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.deliver(&subscription.WebhookEvent{
			ID:           "evt_inv",
			Kind:         subscription.EventInvoicePaymentSucceeded,
			ProviderType: "invoice.payment_succeeded",
			Invoice:      &subscription.InvoiceRef{ID: "in_1", CustomerID: testCustomerID},
		})

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookIgnored, outcome)
	})
}

func TestService_HandleWebhook_UserResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown customer is ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ps := premiumSubscription()
		ps.CustomerID = "cus_stranger"
		f.deliver(subscriptionEvent("evt_x", subscription.EventSubscriptionUpdated, ps))

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookIgnored, outcome)
	})

	t.Run("metadata user id creates the record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ps := premiumSubscription()
		ps.Metadata = map[string]string{subscription.MetadataUserID: f.sub.UserID.String()}
		f.deliver(subscriptionEvent("evt_meta", subscription.EventSubscriptionCreated, ps))

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)

		rec := f.record(t)
		assert.Equal(t, testCustomerID, rec.BillingCustomerID)
		assert.Equal(t, subscription.TierPremium, rec.PlanTier)
		assert.True(t, rec.CanReactivate)
	})
}

func TestService_HandleWebhook_NewSubscriptionAfterCancellation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	subscribed(t, f)
	f.provider.On("CancelImmediately", mock.Anything, testSubID).Return(nil).Once()
	_, err := f.svc.Cancel(ctx, f.sub, subscription.CancellationImmediate)
	require.NoError(t, err)

	ps := premiumSubscription()
	ps.ID = "sub_456"
	ps.Created = may20
	f.deliver(subscriptionEvent("evt_new", subscription.EventSubscriptionCreated, ps))
	f.clock = may20
	_, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
	require.NoError(t, err)

	rec := f.record(t)
	assert.Equal(t, subscription.StatusActive, rec.SubscriptionStatus)
	assert.False(t, rec.IsCancelled)
	assert.Equal(t, subscription.CancellationNone, rec.CancellationType)
	assert.Nil(t, rec.CancellationDate)
	assert.False(t, rec.CanReactivate)
}

func TestService_HandleWebhook_Claims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("in flight elsewhere", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.deduper.Claim(ctx, "evt_busy")
		require.NoError(t, err)
		f.deliver(subscriptionEvent("evt_busy", subscription.EventSubscriptionUpdated, premiumSubscription()))

		_, err = f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		assert.ErrorIs(t, err, subscription.ErrEventInFlight)
	})

	t.Run("failure releases the claim", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		subscribed(t, f)
		ps := premiumSubscription()
		inv := &subscription.WebhookEvent{
			ID:           "evt_retry",
			Kind:         subscription.EventInvoicePaymentSucceeded,
			ProviderType: "invoice.payment_succeeded",
			Invoice:      &subscription.InvoiceRef{ID: "in_2", SubscriptionID: testSubID},
		}
		f.provider.On("ParseWebhook", mock.Anything, webhookPayload, webhookSignature).Return(inv, nil).Twice()
		f.provider.On("GetSubscription", mock.Anything, testSubID).Return(nil, errors.New("stripe 503")).Once()
		f.provider.On("GetSubscription", mock.Anything, testSubID).Return(&ps, nil).Once()

		_, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		assert.ErrorIs(t, err, subscription.ErrProvider)

		outcome, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)
	})
}

// ctxRecordingDeduper records the context state seen when a claim is settled.
type ctxRecordingDeduper struct {
	*subscription.MemoryDeduper
	mu          sync.Mutex
	completeErr []error
	releaseErr  []error
}

func (d *ctxRecordingDeduper) Complete(ctx context.Context, eventID string) error {
	d.mu.Lock()
	d.completeErr = append(d.completeErr, ctx.Err())
	d.mu.Unlock()
	return d.MemoryDeduper.Complete(ctx, eventID)
}

func (d *ctxRecordingDeduper) Release(ctx context.Context, eventID string) error {
	d.mu.Lock()
	d.releaseErr = append(d.releaseErr, ctx.Err())
	d.mu.Unlock()
	return d.MemoryDeduper.Release(ctx, eventID)
}

// cancelAfterUpsert cancels the request context once the write has landed,
// as a client disconnect right after processing would.
type cancelAfterUpsert struct {
	*subscription.MemoryStore
	cancel context.CancelFunc
}

func (s *cancelAfterUpsert) Upsert(ctx context.Context, userID uuid.UUID, patch subscription.Patch) (*subscription.Record, error) {
	rec, err := s.MemoryStore.Upsert(ctx, userID, patch)
	s.cancel()
	return rec, err
}

func TestService_HandleWebhook_SettlesClaimAfterCancel(t *testing.T) {
	t.Parallel()

	t.Run("release survives a cancelled request", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		d := &ctxRecordingDeduper{MemoryDeduper: subscription.NewMemoryDeduper()}
		f := newFixture(t, subscription.WithDeduper(d))
		f.deliver(&subscription.WebhookEvent{
			ID:           "evt_gone",
			Kind:         subscription.EventInvoicePaymentSucceeded,
			ProviderType: "invoice.payment_succeeded",
			Invoice:      &subscription.InvoiceRef{ID: "in_3", SubscriptionID: testSubID},
		})
		f.provider.On("GetSubscription", mock.Anything, testSubID).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, errors.New("client went away")).Once()

		_, err := f.svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.Error(t, err)

		d.mu.Lock()
		defer d.mu.Unlock()
		require.Len(t, d.releaseErr, 1)
		assert.NoError(t, d.releaseErr[0])
		assert.Empty(t, d.completeErr)
	})

	t.Run("complete survives a cancelled request", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f := newFixture(t)
		subscribed(t, f)

		d := &ctxRecordingDeduper{MemoryDeduper: subscription.NewMemoryDeduper()}
		svc := subscription.NewService(f.provider, &cancelAfterUpsert{MemoryStore: f.store, cancel: cancel}, f.usage,
			subscription.WithClock(func() time.Time { return f.clock }),
			subscription.WithDeduper(d),
		)
		f.deliver(subscriptionEvent("evt_done", subscription.EventSubscriptionUpdated, premiumSubscription()))

		outcome, err := svc.HandleWebhook(ctx, webhookPayload, webhookSignature)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookApplied, outcome)
		require.Error(t, ctx.Err())

		d.mu.Lock()
		defer d.mu.Unlock()
		require.Len(t, d.completeErr, 1)
		assert.NoError(t, d.completeErr[0])
		assert.Empty(t, d.releaseErr)
	})
}

func TestService_HandleWebhook_Unhandled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deliver(&subscription.WebhookEvent{ID: "evt_misc", Kind: subscription.EventUnhandled, ProviderType: "charge.refunded"})

	outcome, err := f.svc.HandleWebhook(context.Background(), webhookPayload, webhookSignature)
	require.NoError(t, err)
	assert.Equal(t, subscription.WebhookIgnored, outcome)
}
