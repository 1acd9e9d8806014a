package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"crm/internal/backend"
	"crm/internal/cli"
	"crm/internal/config"
	apphttp "crm/internal/http"
	crmlog "crm/internal/log"
	"crm/internal/middleware/ratelimit"
	"crm/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, crmlog.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", crmlog.FieldError, err.Error())
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", crmlog.FieldError, err.Error())
		os.Exit(1)
	}
	// Appointment events are optional; without a broker the calendar mirror
	// catches up through the worker's reconciliation pass.
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", crmlog.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", crmlog.FieldError, err.Error())
		}
	}()
	if res.Events == nil {
		logger.Info("Appointment events will not be published")
	}

	store := res.Store
	crm := services.NewCRMService(store, res.Events)
	reports := services.NewReportService(store, loc)

	srv := apphttp.NewServer(":"+cfg.Port, crm, reports, apphttp.Options{
		Logger: logger,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL,
		EventDuration: cfg.EventDuration,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", crmlog.FieldError, err.Error())
		}
	})

	logger.Info("Starting CRM server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", crmlog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
