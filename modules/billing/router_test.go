package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/subscriptions/handler"
	"github.com/petvoice/subscriptions/modules/billing"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

const (
	goodToken = "good-token"
	testEmail = "owner@example.com"
)

var testUserID = uuid.MustParse("6f1c2a57-7c1e-4f4e-9d59-3f8c7b1b2a10")

type mockService struct {
	mock.Mock
}

func (m *mockService) Check(ctx context.Context, sub subscription.Subscriber) (*subscription.Status, error) {
	args := m.Called(ctx, sub)
	s, _ := args.Get(0).(*subscription.Status)
	return s, args.Error(1)
}

func (m *mockService) Cancel(ctx context.Context, sub subscription.Subscriber, kind subscription.CancellationType) (*subscription.CancellationResult, error) {
	args := m.Called(ctx, sub, kind)
	res, _ := args.Get(0).(*subscription.CancellationResult)
	return res, args.Error(1)
}

func (m *mockService) Reactivate(ctx context.Context, sub subscription.Subscriber) (*subscription.Record, error) {
	args := m.Called(ctx, sub)
	rec, _ := args.Get(0).(*subscription.Record)
	return rec, args.Error(1)
}

func (m *mockService) Status(ctx context.Context, rec *subscription.Record) (*subscription.Status, error) {
	args := m.Called(ctx, rec)
	s, _ := args.Get(0).(*subscription.Status)
	return s, args.Error(1)
}

func (m *mockService) HandleWebhook(ctx context.Context, payload []byte, signature string) (subscription.WebhookOutcome, error) {
	args := m.Called(ctx, payload, signature)
	return args.Get(0).(subscription.WebhookOutcome), args.Error(1)
}

type fakeVerifier struct {
	err error
}

func (v fakeVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	if v.err != nil {
		return identity.Identity{}, v.err
	}
	if token != goodToken {
		return identity.Identity{}, errors.Join(identity.ErrUnauthorized, identity.ErrInvalidToken)
	}
	return identity.Identity{UserID: testUserID, Email: testEmail}, nil
}

var subscriber = subscription.Subscriber{UserID: testUserID, Email: testEmail}

type fixture struct {
	svc    *mockService
	router http.Handler
}

func newFixture(t *testing.T, opts ...func(*billing.RouterOptions)) *fixture {
	t.Helper()
	svc := &mockService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })

	o := billing.RouterOptions{Service: svc, Verifier: fakeVerifier{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &fixture{svc: svc, router: billing.Router(o)}
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+goodToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body handler.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func endOfMay() *time.Time {
	t := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRouter_Auth(t *testing.T) {
	t.Parallel()

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/subscription/check", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", errorCode(t, rec))
	})

	t.Run("invalid token never reaches the service", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/subscription/cancel", `{"type":"immediate"}`,
			map[string]string{"Authorization": "Bearer forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("auth server down", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(o *billing.RouterOptions) {
			o.Verifier = fakeVerifier{err: identity.ErrAuthServer}
		})
		rec := f.do(http.MethodPost, "/subscription/check", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "auth_unavailable", errorCode(t, rec))
	})
}

func TestRouter_Check(t *testing.T) {
	t.Parallel()

	t.Run("active subscriber", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.On("Check", mock.Anything, subscriber).Return(&subscription.Status{
			Subscribed:       true,
			SubscriptionTier: subscription.TierPremium,
			SubscriptionEnd:  endOfMay(),
			CanReactivate:    true,
			Usage:            subscription.Usage{AnalysesThisMonth: 3, TotalPets: 2},
		}, nil).Once()

		rec := f.do(http.MethodPost, "/subscription/check", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"subscribed": true,
			"subscriptionTier": "premium",
			"subscriptionEnd": "2025-06-01T00:00:00Z",
			"isCancelled": false,
			"cancellationType": null,
			"cancellationDate": null,
			"cancellationEffectiveDate": null,
			"canReactivate": true,
			"usage": {"analysesThisMonth": 3, "totalPets": 2},
			"blocked": false
		}`, rec.Body.String())
	})

	t.Run("immediate cancellation is blocked", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
		f.svc.On("Check", mock.Anything, subscriber).Return(&subscription.Status{
			Subscribed:                true,
			SubscriptionTier:          subscription.TierPremium,
			IsCancelled:               true,
			CancellationType:          subscription.CancellationImmediate,
			CancellationDate:          &now,
			CancellationEffectiveDate: &now,
		}, nil).Once()

		rec := f.do(http.MethodPost, "/subscription/check", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["blocked"])
		assert.Equal(t, "immediate", body["cancellationType"])
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.On("Check", mock.Anything, subscriber).
			Return(nil, errors.Join(subscription.ErrProvider, errors.New("stripe: 503"))).Once()

		rec := f.do(http.MethodPost, "/subscription/check", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "billing_provider_error", errorCode(t, rec))
		assert.NotContains(t, rec.Body.String(), "503")
	})

	t.Run("rate limited per user", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		f := newFixture(t, func(o *billing.RouterOptions) {
			o.Limiter = billing.NewCheckLimiter(billing.Config{CheckRateLimit: 1, CheckRateBurst: 2})
			o.Now = func() time.Time { return now }
		})
		f.svc.On("Check", mock.Anything, subscriber).Return(&subscription.Status{}, nil).Twice()

		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/subscription/check", "", nil).Code)
		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/subscription/check", "", nil).Code)
		rec := f.do(http.MethodPost, "/subscription/check", "", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "too_many_requests", errorCode(t, rec))
	})
}

func TestRouter_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("end of period", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.On("Cancel", mock.Anything, subscriber, subscription.CancellationEndOfPeriod).
			Return(&subscription.CancellationResult{
				CancellationType:          subscription.CancellationEndOfPeriod,
				CancellationEffectiveDate: endOfMay(),
			}, nil).Once()

		rec := f.do(http.MethodPost, "/subscription/cancel", `{"type":"end_of_period"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"cancellationType":"end_of_period","cancellationEffectiveDate":"2025-06-01T00:00:00Z"}`, rec.Body.String())
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/subscription/cancel", `{"type":"later"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_cancellation_type", errorCode(t, rec))
	})

	t.Run("missing type", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/subscription/cancel", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/subscription/cancel", `{"type":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", errorCode(t, rec))
	})

	t.Run("no active subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.On("Cancel", mock.Anything, subscriber, subscription.CancellationImmediate).
			Return(nil, subscription.ErrNoActiveSubscription).Once()

		rec := f.do(http.MethodPost, "/subscription/cancel", `{"type":"immediate"}`, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "no_active_subscription", errorCode(t, rec))
	})
}

func TestRouter_Reactivate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := &subscription.Record{UserID: testUserID, PlanTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusActive, CanReactivate: true}
		f.svc.On("Reactivate", mock.Anything, subscriber).Return(rec, nil).Once()
		f.svc.On("Status", mock.Anything, rec).Return(rec.Status(subscription.Usage{TotalPets: 1}), nil).Once()

		resp := f.do(http.MethodPost, "/subscription/reactivate", "", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, true, body["subscribed"])
		assert.Nil(t, body["cancellationType"])
		assert.NotContains(t, body, "blocked")
	})

	t.Run("not reactivatable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.On("Reactivate", mock.Anything, subscriber).
			Return(nil, subscription.ErrNotReactivatable).Once()

		resp := f.do(http.MethodPost, "/subscription/reactivate", "", nil)
		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "not_reactivatable", errorCode(t, resp))
	})
}

func TestRouter_Webhook(t *testing.T) {
	t.Parallel()

	payload := `{"id":"evt_1","type":"customer.subscription.updated"}`
	noAuth := func(f *fixture, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(payload))
		req.Header.Set(billing.SignatureHeader, sig)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name    string
		outcome subscription.WebhookOutcome
		err     error
		code    int
		errCode string
	}{
		{name: "applied", outcome: subscription.WebhookApplied, code: http.StatusOK},
		{name: "duplicate", outcome: subscription.WebhookDuplicate, code: http.StatusOK},
		{name: "ignored", outcome: subscription.WebhookIgnored, code: http.StatusOK},
		{name: "bad signature", err: subscription.ErrSignatureVerification, code: http.StatusBadRequest, errCode: "invalid_signature"},
		{name: "bad payload", err: subscription.ErrInvalidPayload, code: http.StatusBadRequest, errCode: "invalid_payload"},
		{name: "in flight", err: subscription.ErrEventInFlight, code: http.StatusConflict, errCode: "event_in_flight"},
		{name: "store failure", err: subscription.ErrStore, code: http.StatusInternalServerError, errCode: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.svc.On("HandleWebhook", mock.Anything, []byte(payload), "t=1,v1=abc").
				Return(tt.outcome, tt.err).Once()

			rec := noAuth(f, "t=1,v1=abc")
			assert.Equal(t, tt.code, rec.Code)
			if tt.errCode != "" {
				assert.Equal(t, tt.errCode, errorCode(t, rec))
				return
			}
			var body billing.WebhookResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Received)
			assert.Equal(t, tt.outcome, body.Outcome)
		})
	}
}

func TestRouter_RequiresDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.Router(billing.RouterOptions{Verifier: fakeVerifier{}}) })
	assert.Panics(t, func() { billing.Router(billing.RouterOptions{Service: &mockService{}}) })
}
