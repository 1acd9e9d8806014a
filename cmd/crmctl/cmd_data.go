package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crm/internal/gcal"
	"crm/internal/seed"
	"crm/internal/storage"
	"crm/internal/worker"
)

func runSeed(cmd *cobra.Command, args []string) error {
	fh, err := os.Open(seedFile)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()

	f, err := seed.Parse(fh)
	if err != nil {
		return err
	}

	crm, reports, err := openServices()
	if err != nil {
		return err
	}
	defer crm.Close()

	res, err := seed.Apply(cmd.Context(), crm, f, reports.Location())
	fmt.Fprintf(cmd.OutOrStdout(), "created %d customers, %d leads, %d projects, %d appointments\n",
		res.Customers, res.Leads, res.Projects, res.Appointments)
	return err
}

// runSync performs a single reconciliation pass, the same one the worker
// runs on its interval.
func runSync(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateCalendar(); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	client, err := gcal.New(cmd.Context(), gcal.Options{
		CalendarID:      cfg.GoogleCalendarID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		EventDuration:   cfg.EventDuration,
		TimeZone:        cfg.Timezone,
	})
	if err != nil {
		return err
	}

	synced, err := worker.NewCalendarSync(repo, client, cfg.SyncBatchSize).ReconcileUnsynced(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d appointments\n", synced)
	return nil
}
