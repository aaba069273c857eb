package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/petvoice/subscriptions/pkg/email"
	"github.com/petvoice/subscriptions/pkg/logger"
	"github.com/petvoice/subscriptions/pkg/pg"
	"github.com/petvoice/subscriptions/pkg/redis"
	"github.com/petvoice/subscriptions/pkg/subscription"
	store "github.com/petvoice/subscriptions/svc/subscription"
)

// app holds the wired service and the resources it must release.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	pool     *pgxpool.Pool
	redis    *goredis.Client
	registry *prometheus.Registry
	service  *subscription.Service
}

type appOptions struct {
	// webhooks connects Redis for event de-duplication. Operator commands
	// never receive webhooks and run without it.
	webhooks bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	var cfg appConfig
	if err := loadConfig(&cfg); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(cfg), registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	var (
		pgCfg     pg.Config
		stripeCfg subscription.StripeConfig
		emailCfg  email.Config
	)
	if err := errors.Join(loadConfig(&pgCfg), loadConfig(&stripeCfg), loadConfig(&emailCfg)); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	a.pool = pool

	metrics := subscription.NewMetrics(a.registry)
	provider, err := subscription.NewStripeProvider(stripeCfg,
		subscription.WithStripeLogger(a.log),
		subscription.WithStripeMetrics(metrics),
	)
	if err != nil {
		return err
	}
	tiers, err := tierResolver(a.cfg)
	if err != nil {
		return err
	}
	sender, err := email.NewSender(emailCfg)
	if err != nil {
		return err
	}

	svcOpts := []subscription.ServiceOption{
		subscription.WithLogger(a.log),
		subscription.WithMetrics(metrics),
		subscription.WithTierResolver(tiers),
		subscription.WithLocker(store.NewLocker(pg.NewAdvisoryLocker(pool, "subscription"))),
		subscription.WithNotifier(store.NewNotifier(sender)),
	}

	if opts.webhooks {
		var redisCfg redis.Config
		if err := loadConfig(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		a.redis = client
		svcOpts = append(svcOpts, subscription.WithDeduper(redis.NewEventDeduper(client, redisCfg)))
	}

	a.service = subscription.NewService(provider, store.NewStore(pool), store.NewUsage(pool), svcOpts...)
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("failed to close redis client", logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
