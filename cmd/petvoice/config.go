package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/petvoice/subscriptions/modules/billing"
	"github.com/petvoice/subscriptions/pkg/config"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/logger"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

const serviceName = "petvoice-subscriptions"

type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL"`
	LogFormat    string `env:"LOG_FORMAT"`
	PriceCatalog string `env:"BILLING_PRICE_CATALOG"`

	Tiers subscription.TierThresholds
	API   billing.Config
}

// loadConfig fills cfg from the environment after reading the env files.
func loadConfig[T any](cfg *T) error {
	return config.Load(cfg, config.WithEnvFiles(envFiles...))
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, serviceName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(requestIDExtractor, identity.LoggerExtractor()),
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.RequestID(id), true
	}
	return slog.Attr{}, false
}

func tierResolver(cfg appConfig) (*subscription.TierResolver, error) {
	var catalog map[string]subscription.PlanTier
	if cfg.PriceCatalog != "" {
		var err error
		if catalog, err = subscription.LoadPriceCatalog(cfg.PriceCatalog); err != nil {
			return nil, fmt.Errorf("load price catalog: %w", err)
		}
	}
	return subscription.NewTierResolver(cfg.Tiers, catalog), nil
}
