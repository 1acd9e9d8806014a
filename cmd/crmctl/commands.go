package main

import (
	"github.com/spf13/cobra"
)

var (
	// Flags shared by every subcommand.
	dbPath   string
	timezone string

	migrateSteps int
	seedFile     string
	calYear      int
	calMonth     int
	jsonOutput   bool

	rootCmd = &cobra.Command{
		Use:   "crmctl",
		Short: "Administer the solar CRM database",
		Long: `crmctl runs schema migrations, loads seed data and prints reports
straight from the SQLite database used by the server and the worker.`,
		PersistentPreRun: loadSettings,
		SilenceUsage:     true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp, // Defined in cmd_migrate.go
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE:  runMigrateDown, // Defined in cmd_migrate.go
	}
	migrateVersionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE:  runMigrateVersion, // Defined in cmd_migrate.go
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load customers, leads, projects and appointments from a YAML file",
		RunE:  runSeed, // Defined in cmd_data.go
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard headline metrics",
		RunE:  runStats, // Defined in cmd_report.go
	}
	calendarCmd = &cobra.Command{
		Use:   "calendar",
		Short: "Print the appointment calendar of a month",
		RunE:  runCalendar, // Defined in cmd_report.go
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced appointments to Google Calendar once",
		RunE:  runSync, // Defined in cmd_data.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&timezone, "tz", "", "Business timezone (defaults to APP_TIMEZONE)")

	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file")
	_ = seedCmd.MarkFlagRequired("file")

	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	calendarCmd.Flags().IntVar(&calYear, "year", 0, "Year (defaults to the current year)")
	calendarCmd.Flags().IntVar(&calMonth, "month", 0, "Month 1-12 (defaults to the current month)")

	rootCmd.AddCommand(migrateCmd, seedCmd, statsCmd, calendarCmd, syncCmd)
}
