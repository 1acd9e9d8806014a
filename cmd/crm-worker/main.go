package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"crm/internal/backend"
	"crm/internal/cli"
	"crm/internal/config"
	"crm/internal/gcal"
	crmlog "crm/internal/log"
	"crm/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, crmlog.ComponentWorker)
	cli.MustValidate(logger, cfg.ValidateWorker)

	logger.Info("Starting crm-worker")

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", crmlog.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", crmlog.FieldError, err.Error())
		os.Exit(1)
	}
	defer res.Cleanup()
	if res.AMQP == nil {
		logger.Error("The worker cannot run without the AMQP broker", "url_set", cfg.AMQPURL != "")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	calendarClient, err := gcal.New(ctx, gcal.Options{
		CalendarID:      cfg.GoogleCalendarID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		EventDuration:   cfg.EventDuration,
		TimeZone:        cfg.Timezone,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Calendar client", crmlog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Calendar client initialized", "calendar_id", cfg.GoogleCalendarID)

	syncer := worker.NewCalendarSync(res.Store, calendarClient, cfg.SyncBatchSize)

	// Events drive the mirror; the periodic pass picks up whatever was
	// written while the broker or the calendar was unavailable.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.AMQP.ConsumeAppointmentEvents(gctx, syncer.HandleEvent)
	})
	g.Go(func() error {
		syncer.Run(gctx, cfg.SyncInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", crmlog.FieldError, err.Error())
	}
	<-done
	logger.Info("Worker shutdown complete")
}
