package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/reconarr/internal/api"
	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/models"
	"github.com/amaumene/reconarr/internal/notifications"
	"github.com/amaumene/reconarr/internal/reconcile"
	"github.com/amaumene/reconarr/internal/scanner"
	"github.com/amaumene/reconarr/internal/scheduler"
	"github.com/amaumene/reconarr/internal/services/metadata"
	"github.com/amaumene/reconarr/internal/services/servarr"
	"github.com/amaumene/reconarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Reconarr")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize notification manager
	notifier := notifications.NewManager(logger)
	if cfg.Notifications.WebhookURL != "" {
		notifier.RegisterAgent(notifications.NewWebhookAgent(
			cfg.Notifications.WebhookURL,
			cfg.Notifications.WebhookAuthHeader,
			logger,
		))
		logger.Info("Webhook notification agent registered")
	}

	// 5. Initialize metadata client
	var provider reconcile.MetadataProvider
	if cfg.Metadata.BaseURL != "" {
		metadataClient, err := metadata.NewClient(cfg.Metadata, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize metadata client: %w", err)
		}
		provider = metadataClient
		logger.Info("Metadata client initialized")
	} else {
		provider = metadata.Unconfigured{}
		logger.Warn("No metadata endpoint configured, notifications will not be enriched")
	}

	// 6. Initialize reconciliation engine
	processor := reconcile.NewProcessor(db, logger)
	processor.Subscribe(reconcile.NewCascadeSubscriber(db, provider, notifier, logger))
	logger.Info("Reconciliation engine initialized")

	// 7. Initialize scanners
	bundleOpt := cfg.Scan.BundleSize
	rateOpt := cfg.Scan.UpdateRate
	radarrScanner := scanner.NewRadarrScanner(processor, logger,
		scanner.WithBundleSize[servarr.RadarrMovie](bundleOpt),
		scanner.WithUpdateRate[servarr.RadarrMovie](rateOpt))
	sonarrScanner := scanner.NewSonarrScanner(processor, logger,
		scanner.WithBundleSize[servarr.SonarrSeries](bundleOpt),
		scanner.WithUpdateRate[servarr.SonarrSeries](rateOpt))
	lidarrScanner := scanner.NewLidarrScanner(processor, logger,
		scanner.WithBundleSize[servarr.LidarrAlbum](bundleOpt),
		scanner.WithUpdateRate[servarr.LidarrAlbum](rateOpt))
	logger.Info("Scanners initialized")

	// 8. Initialize scheduler
	sched := scheduler.NewScheduler(cfg, radarrScanner, sonarrScanner, lidarrScanner, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 9. Initialize HTTP server
	server := api.NewServer(cfg, []scanner.Runnable{radarrScanner, sonarrScanner, lidarrScanner}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Reconarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Reconarr stopped")
	return nil
}
