// Package cli holds the start-up steps shared by cmd/crm, cmd/crm-worker and
// cmd/crmctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crm/internal/config"
	crmlog "crm/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the configured level and makes it
// the slog default.
func SetupLogger(cfg *config.Config, component string) *crmlog.Logger {
	lc := crmlog.DefaultConfig()
	lc.Level = cfg.SlogLevel()
	lc.Component = component
	if cfg.LogFormat != "" {
		lc.Format = cfg.LogFormat
	}
	logger := crmlog.New(lc)
	crmlog.SetDefault(logger)
	return logger
}

// MustValidate exits the process when validate reports a problem.
func MustValidate(logger *crmlog.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", crmlog.FieldError, err.Error())
		os.Exit(1)
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a deadline of timeout before the context is cancelled; done is
// closed once it returns.
func GracefulShutdown(logger *crmlog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
	}()

	return ctx, done
}
