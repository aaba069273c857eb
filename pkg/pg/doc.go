// Package pg wires PostgreSQL into the service using the pgx/v5 driver.
//
// It covers pool bootstrapping with retries (Connect), schema migrations
// from an embedded filesystem via goose (Migrate), a readiness probe
// (Healthcheck), error classification helpers and a session-level advisory
// lock (AdvisoryLocker) for serializing work on one key across replicas.
//
// Configuration is read from the environment:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil { ... }
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil { ... }
package pg
