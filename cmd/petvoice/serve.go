package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/petvoice/subscriptions/modules/billing"
	"github.com/petvoice/subscriptions/pkg/httpserver"
	"github.com/petvoice/subscriptions/pkg/identity"
	"github.com/petvoice/subscriptions/pkg/pg"
	"github.com/petvoice/subscriptions/pkg/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the subscription API and billing webhook",
	Long: `Serve the subscription API and the billing webhook until SIGINT or SIGTERM.

Routes:
  POST /subscription/check        reconcile and return the caller's status
  POST /subscription/cancel       cancel immediately or at period end
  POST /subscription/reactivate   withdraw a scheduled cancellation
  POST /webhooks/billing          Stripe events
  GET  /health/live, /health/ready, /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{webhooks: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		httpCfg httpserver.Config
		authCfg identity.Config
	)
	if err := loadConfig(&httpCfg); err != nil {
		return err
	}
	if err := loadConfig(&authCfg); err != nil {
		return err
	}
	verifier, err := identity.New(authCfg)
	if err != nil {
		return err
	}

	httpMetrics := httpserver.NewMetrics(a.registry, "petvoice")

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, httpMetrics.Middleware, middleware.Recoverer)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, 2*time.Second,
		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(a.pool)},
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(a.redis)},
	))
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	r.Mount("/", billing.Router(billing.RouterOptions{
		Service:  a.service,
		Verifier: verifier,
		Limiter:  billing.NewCheckLimiter(a.cfg.API),
		Logger:   a.log,
		Config:   a.cfg.API,
	}))

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))
	return srv.Run(ctx, r)
}
