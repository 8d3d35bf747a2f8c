package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/exitcode"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.DSN == "" {
		return fail(exitcode.ConfigError, errors.New("--dsn or DATABASE_URL is required"))
	}

	pool, err := openPool(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info().Msg("all migrations applied successfully")
	return nil
}
