package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"doulitsa/internal/config"
	"doulitsa/internal/migrations"
	"doulitsa/internal/repositories"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the content and chat database migrations",
	Long: `Apply the embedded migrations to the content database (MySQL) and,
when realtime.database_url is configured, to the chat database (Postgres).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		db, err := repositories.OpenMySQL(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		var pool *pgxpool.Pool
		if cfg.Realtime.DatabaseURL != "" {
			pool, err = repositories.OpenPostgres(ctx, cfg.Realtime.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
		}

		if err := migrations.UpAll(ctx, db, pool); err != nil {
			return err
		}
		version, err := migrations.Version(ctx, db, migrations.DialectMySQL)
		if err != nil {
			return err
		}
		log.WithField("version", version).Info("content schema is up to date")
		if pool != nil {
			log.Info("chat schema is up to date")
		}
		return nil
	},
}
