package scanner

import (
	"context"
	"strconv"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/reconcile"
	"github.com/amaumene/reconarr/internal/services/servarr"
	"github.com/sirupsen/logrus"
)

// SeriesCatalog is the slice of the Sonarr API this scanner consumes.
type SeriesCatalog interface {
	GetSeries(ctx context.Context) ([]servarr.SonarrSeries, error)
}

// SonarrScanner reconciles configured Sonarr servers into canonical TV
// availability records, season by season.
type SonarrScanner struct {
	*Base[servarr.SonarrSeries]
	processor *reconcile.Processor
	newClient func(server config.ServerConfig) SeriesCatalog
}

// NewSonarrScanner creates a new Sonarr scanner
func NewSonarrScanner(processor *reconcile.Processor, logger *logrus.Logger, opts ...BaseOption[servarr.SonarrSeries]) *SonarrScanner {
	scanner := &SonarrScanner{
		Base:      NewBase("Sonarr Scan", logger, opts...),
		processor: processor,
	}
	scanner.newClient = func(server config.ServerConfig) SeriesCatalog {
		return servarr.NewSonarrClient(server, logger)
	}
	return scanner
}

// Run performs one full reconciliation pass over the given server snapshot.
func (s *SonarrScanner) Run(ctx context.Context, servers []config.ServerConfig) error {
	gen := s.StartRun()
	defer s.EndRun(gen)

	enable4k := config.Any4k(servers)
	if enable4k {
		s.log().Info("At least one 4K Sonarr server was detected, 4K series detection is enabled")
	}

	servers = config.DedupServers(servers)
	s.SetServers(gen, serverNames(servers))

	for _, server := range servers {
		if s.Superseded(gen) {
			s.log().WithError(ErrSuperseded).Error("Scan interrupted")
			return ErrSuperseded
		}
		if !server.SyncEnabled {
			s.log().WithField("server", server.Name).Info("Sync not enabled, skipping Sonarr server")
			continue
		}

		s.SetCurrentServer(gen, server.Name)
		s.log().WithField("server", server.Name).Info("Beginning to process Sonarr server")

		series, err := s.newClient(server).GetSeries(ctx)
		if err != nil {
			s.log().WithError(err).WithField("server", server.Name).Error("Failed to fetch series catalog, skipping server")
			continue
		}
		s.SetItems(gen, series)

		server := server
		is4k := enable4k && server.Is4k
		if err := s.Loop(ctx, gen, func(ctx context.Context, series servarr.SonarrSeries) {
			s.processSeries(ctx, server, is4k, series)
		}); err != nil {
			s.log().WithError(err).Error("Scan interrupted")
			return err
		}
	}

	s.log().Info("Sonarr scan complete")
	return nil
}

func (s *SonarrScanner) processSeries(ctx context.Context, server config.ServerConfig, is4k bool, series servarr.SonarrSeries) {
	var seasons []reconcile.ProcessableSeason
	downloaded := false

	for _, season := range series.Seasons {
		// Season 0 holds specials and is not tracked
		if season.SeasonNumber == 0 {
			continue
		}

		fileCount := 0
		totalCount := 0
		if season.Statistics != nil {
			fileCount = season.Statistics.EpisodeFileCount
			totalCount = season.Statistics.TotalEpisodeCount
		}
		if fileCount > 0 {
			downloaded = true
		}

		episodes := fileCount
		episodes4k := 0
		if is4k {
			episodes = 0
			episodes4k = fileCount
		}

		seasons = append(seasons, reconcile.ProcessableSeason{
			SeasonNumber:  season.SeasonNumber,
			TotalEpisodes: totalCount,
			Episodes:      episodes,
			Episodes4k:    episodes4k,
			Is4kOverride:  is4k,
			Processing:    season.Monitored && fileCount == 0,
		})
	}

	if !series.Monitored && !downloaded {
		s.log().WithField("title", series.Title).Debug("Title is unmonitored and has not been downloaded, skipping item")
		return
	}

	_, err := s.processor.ProcessShow(ctx, strconv.Itoa(series.TvdbID), seasons, reconcile.Options{
		Is4k:                is4k,
		Title:               series.Title,
		ServiceID:           server.ID,
		ExternalServiceID:   series.ID,
		ExternalServiceSlug: series.TitleSlug,
	})
	if err != nil {
		s.log().WithError(err).WithField("title", series.Title).Error("Failed to process Sonarr media")
	}
}
