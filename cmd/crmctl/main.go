package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crm/internal/cli"
	"crm/internal/config"
	crmlog "crm/internal/log"
	"crm/internal/services"
	"crm/internal/storage"
)

var (
	cfg    *config.Config
	logger *crmlog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadSettings reads the environment and applies the persistent flags.
// crmctl always works on the SQLite database.
func loadSettings(cmd *cobra.Command, args []string) {
	cli.LoadEnvFile()
	cfg = config.Load()
	cfg.DataBackend = config.BackendSQLite
	if dbPath != "" {
		cfg.SQLiteDBPath = dbPath
	}
	if timezone != "" {
		cfg.Timezone = timezone
	}
	logger = cli.SetupLogger(cfg, crmlog.ComponentCLI)
}

// openServices opens the database, applying pending migrations, and returns
// the CRM and report services over it. Events are not published.
func openServices() (*services.CRMService, *services.ReportService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return services.NewCRMService(repo, nil), services.NewReportService(repo, loc), nil
}
