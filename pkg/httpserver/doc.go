// Package httpserver runs an http.Server until its context is cancelled and
// then shuts it down gracefully. It also provides the liveness and readiness
// handlers used by the orchestrator.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err := srv.Run(ctx, router)
package httpserver
