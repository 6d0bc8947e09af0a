package main

import (
	"database/sql"
	"fmt"

	"commitvault/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the journal and idempotency schema to Postgres",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := envDefault(migrateDSN, "STORAGE_DATABASE_DSN")
		if dsn == "" {
			return fmt.Errorf("dsn is required (--dsn or STORAGE_DATABASE_DSN)")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(cmd.Context()); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "Postgres DSN (default $STORAGE_DATABASE_DSN)")
	rootCmd.AddCommand(migrateCmd)
}
