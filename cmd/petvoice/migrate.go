package main

import (
	"github.com/spf13/cobra"

	"github.com/petvoice/subscriptions/pkg/pg"
	"github.com/petvoice/subscriptions/svc/subscription/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every pending migration of the subscriber schema.

Examples:
  # Migrate the database named by DATABASE_URL
  petvoice migrate

  # Use a different env file
  petvoice migrate --env-file=.env.staging`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	var (
		cfg   appConfig
		pgCfg pg.Config
	)
	if err := loadConfig(&cfg); err != nil {
		return err
	}
	if err := loadConfig(&pgCfg); err != nil {
		return err
	}
	log := newLogger(cfg)

	pool, err := pg.Connect(cmd.Context(), pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return pg.Migrate(cmd.Context(), pool, pgCfg, migrations.FS, log)
}
