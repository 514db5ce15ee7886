package scheduler

import (
	"context"
	"fmt"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/scanner"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler drives scan runs on a timer. Each tick resolves a fresh server
// snapshot from configuration so runs never share settings state.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	radarr *scanner.RadarrScanner
	sonarr *scanner.SonarrScanner
	lidarr *scanner.LidarrScanner
	logger *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	cfg *config.Config,
	radarr *scanner.RadarrScanner,
	sonarr *scanner.SonarrScanner,
	lidarr *scanner.LidarrScanner,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		radarr: radarr,
		sonarr: sonarr,
		lidarr: lidarr,
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Hourly full reconciliation pass per media kind, staggered so the
	// three scanners do not hit the store at the same instant
	_, err := s.cron.AddFunc("0 * * * *", func() {
		s.runRadarr()
	})
	if err != nil {
		return fmt.Errorf("failed to add Radarr scan job: %w", err)
	}

	_, err = s.cron.AddFunc("10 * * * *", func() {
		s.runSonarr()
	})
	if err != nil {
		return fmt.Errorf("failed to add Sonarr scan job: %w", err)
	}

	_, err = s.cron.AddFunc("20 * * * *", func() {
		s.runLidarr()
	})
	if err != nil {
		return fmt.Errorf("failed to add Lidarr scan job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run an initial reconciliation pass immediately
	go func() {
		s.runRadarr()
		s.runSonarr()
		s.runLidarr()
	}()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runRadarr() {
	if err := s.radarr.Run(context.Background(), s.cfg.Radarr); err != nil {
		s.logger.WithError(err).Error("Radarr scan failed")
	}
}

func (s *Scheduler) runSonarr() {
	if err := s.sonarr.Run(context.Background(), s.cfg.Sonarr); err != nil {
		s.logger.WithError(err).Error("Sonarr scan failed")
	}
}

func (s *Scheduler) runLidarr() {
	if err := s.lidarr.Run(context.Background(), s.cfg.Lidarr); err != nil {
		s.logger.WithError(err).Error("Lidarr scan failed")
	}
}
