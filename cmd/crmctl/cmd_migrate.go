package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"crm/internal/storage"
)

func runMigrateUp(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		return err
	}
	return printVersion(cmd)
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if err := storage.RollbackMigrations(cfg.SQLiteDBPath, migrateSteps); err != nil {
		return err
	}
	logger.Info("Rolled back migrations", "steps", migrateSteps, "path", cfg.SQLiteDBPath)
	return printVersion(cmd)
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	return printVersion(cmd)
}

func printVersion(cmd *cobra.Command) error {
	version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}
