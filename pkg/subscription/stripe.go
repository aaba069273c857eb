package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	stripesub "github.com/stripe/stripe-go/v82/subscription"

	"github.com/petvoice/subscriptions/pkg/cache"
	"github.com/petvoice/subscriptions/pkg/logger"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	SecretKey        string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret    string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	APIURL           string        `env:"STRIPE_API_URL"`
	Timeout          time.Duration `env:"BILLING_TIMEOUT" envDefault:"10s"`
	WebhookTolerance time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
	PriceCacheTTL    time.Duration `env:"BILLING_PRICE_CACHE_TTL" envDefault:"15m"`
	PriceCacheSize   int           `env:"BILLING_PRICE_CACHE_SIZE" envDefault:"256"`
	BreakerFailures  uint32        `env:"BILLING_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BILLING_BREAKER_COOLDOWN" envDefault:"30s"`
}

// StripeProvider implements BillingProvider for Stripe.
//
// Every call is bounded by the configured timeout and passes through a
// circuit breaker. The SDK's own network retries are disabled: a failed call
// surfaces as ErrProvider and the client decides whether to retry.
type StripeProvider struct {
	customers     *customer.Client
	subscriptions *stripesub.Client
	prices        *price.Client
	priceAmounts  *cache.TTL[string, int64]
	breaker       *gobreaker.CircuitBreaker[struct{}]
	webhookSecret string
	tolerance     time.Duration
	timeout       time.Duration
	metrics       *Metrics
	log           *slog.Logger
}

// StripeOption configures a StripeProvider.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	log     *slog.Logger
	metrics *Metrics
	clock   cache.Clock
}

func WithStripeLogger(l *slog.Logger) StripeOption {
	return func(o *stripeOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func WithStripeMetrics(m *Metrics) StripeOption {
	return func(o *stripeOptions) { o.metrics = m }
}

// WithStripeClock sets the clock used by the price cache.
func WithStripeClock(c cache.Clock) StripeOption {
	return func(o *stripeOptions) { o.clock = c }
}

// NewStripeProvider creates a Stripe billing provider with its own backend;
// it never touches the SDK's global key or backends.
func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	if cfg.PriceCacheTTL <= 0 {
		cfg.PriceCacheTTL = 15 * time.Minute
	}
	if cfg.PriceCacheSize <= 0 {
		cfg.PriceCacheSize = 256
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	o := &stripeOptions{log: logger.Noop()}
	for _, opt := range opts {
		opt(o)
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		EnableTelemetry:   stripe.Bool(false),
		LeveledLogger:     newStripeLogger(o.log),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	var cacheOpts []cache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}

	p := &StripeProvider{
		customers:     &customer.Client{B: backend, Key: cfg.SecretKey},
		subscriptions: &stripesub.Client{B: backend, Key: cfg.SecretKey},
		prices:        &price.Client{B: backend, Key: cfg.SecretKey},
		priceAmounts:  cache.NewTTL[string, int64](cfg.PriceCacheSize, cfg.PriceCacheTTL, cacheOpts...),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.WebhookTolerance,
		timeout:       cfg.Timeout,
		metrics:       o.metrics,
		log:           o.log,
	}

	failures := cfg.BreakerFailures
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCustomerNotFound) || isStripeNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn("billing provider circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p, nil
}

// call runs fn under the timeout and the breaker.
func (p *StripeProvider) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	p.metrics.ObserveProvider(operation, started, err)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCustomerNotFound) {
		return err
	}
	p.log.WarnContext(ctx, "billing provider call failed", logger.Operation(operation), logger.Error(err))
	return providerError(err)
}

func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if email == "" {
		return nil, ErrCustomerNotFound
	}
	var found *Customer
	err := p.call(ctx, "find_customer", func(ctx context.Context) error {
		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Context = ctx
		params.Limit = stripe.Int64(1)

		it := p.customers.List(params)
		if it.Next() {
			c := it.Customer()
			found = &Customer{ID: c.ID, Email: c.Email}
			return nil
		}
		if err := it.Err(); err != nil {
			return err
		}
		return ErrCustomerNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (p *StripeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	subs, err := p.listSubscriptions(ctx, customerID, string(stripe.SubscriptionStatusActive))
	if err != nil || len(subs) > 0 {
		return subs, err
	}

	all, err := p.listSubscriptions(ctx, customerID, "all")
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, s := range all {
		if s.Status.Live() {
			live = append(live, s)
		}
	}
	return live, nil
}

func (p *StripeProvider) listSubscriptions(ctx context.Context, customerID, status string) ([]ProviderSubscription, error) {
	var raw []*stripe.Subscription
	err := p.call(ctx, "list_subscriptions", func(ctx context.Context) error {
		params := &stripe.SubscriptionListParams{
			Customer: stripe.String(customerID),
			Status:   stripe.String(status),
		}
		params.Context = ctx
		params.Limit = stripe.Int64(10)

		it := p.subscriptions.List(params)
		for it.Next() {
			raw = append(raw, it.Subscription())
		}
		return it.Err()
	})
	if err != nil {
		return nil, err
	}

	out := make([]ProviderSubscription, 0, len(raw))
	for _, s := range raw {
		ps, err := p.toProviderSubscription(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	var raw *stripe.Subscription
	err := p.call(ctx, "get_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		s, err := p.subscriptions.Get(subscriptionID, params)
		raw = s
		return err
	})
	if err != nil {
		return nil, err
	}
	ps, err := p.toProviderSubscription(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// CancelImmediately is a no-op for subscriptions that are already canceled or gone.
func (p *StripeProvider) CancelImmediately(ctx context.Context, subscriptionID string) error {
	return p.call(ctx, "cancel_immediately", func(ctx context.Context) error {
		getParams := &stripe.SubscriptionParams{}
		getParams.Context = ctx
		current, err := p.subscriptions.Get(subscriptionID, getParams)
		if isStripeNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.Status == stripe.SubscriptionStatusCanceled {
			return nil
		}

		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		_, err = p.subscriptions.Cancel(subscriptionID, params)
		if isStripeNotFound(err) {
			return nil
		}
		return err
	})
}

func (p *StripeProvider) ScheduleCancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	return p.setCancelAtPeriodEnd(ctx, "schedule_cancel", subscriptionID, true)
}

func (p *StripeProvider) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return p.setCancelAtPeriodEnd(ctx, "resume_subscription", subscriptionID, false)
}

func (p *StripeProvider) setCancelAtPeriodEnd(ctx context.Context, operation, subscriptionID string, v bool) error {
	return p.call(ctx, operation, func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(v)}
		params.Context = ctx
		_, err := p.subscriptions.Update(subscriptionID, params)
		return err
	})
}

// unitAmount returns the price amount, fetching and caching it when the
// subscription item did not carry one.
func (p *StripeProvider) unitAmount(ctx context.Context, priceID string, embedded *int64) (int64, error) {
	if embedded != nil {
		p.priceAmounts.Set(priceID, *embedded)
		return *embedded, nil
	}
	if amount, ok := p.priceAmounts.Get(priceID); ok {
		return amount, nil
	}

	var amount int64
	err := p.call(ctx, "get_price", func(ctx context.Context) error {
		params := &stripe.PriceParams{}
		params.Context = ctx
		pr, err := p.prices.Get(priceID, params)
		if err != nil {
			return err
		}
		amount = pr.UnitAmount
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.priceAmounts.Set(priceID, amount)
	return amount, nil
}

func (p *StripeProvider) toProviderSubscription(ctx context.Context, s *stripe.Subscription) (ProviderSubscription, error) {
	ps := ProviderSubscription{
		ID:                s.ID,
		Status:            ProviderStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Created:           time.Unix(s.Created, 0).UTC(),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		ps.CustomerID = s.Customer.ID
	}
	if s.Items == nil || len(s.Items.Data) == 0 {
		return ps, nil
	}

	item := s.Items.Data[0]
	ps.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	if item.Price == nil {
		return ps, nil
	}
	ps.PriceID = item.Price.ID
	ps.Currency = string(item.Price.Currency)

	var embedded *int64
	if item.Price.UnitAmount != 0 {
		embedded = &item.Price.UnitAmount
	}
	amount, err := p.unitAmount(ctx, item.Price.ID, embedded)
	if err != nil {
		return ProviderSubscription{}, err
	}
	ps.UnitAmount = amount
	return ps, nil
}

func isStripeNotFound(err error) bool {
	var serr *stripe.Error
	return errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound
}
