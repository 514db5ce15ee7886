package scanner

import (
	"context"
	"strconv"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/reconcile"
	"github.com/amaumene/reconarr/internal/services/servarr"
	"github.com/sirupsen/logrus"
)

// MovieCatalog is the slice of the Radarr API this scanner consumes.
type MovieCatalog interface {
	GetMovies(ctx context.Context) ([]servarr.RadarrMovie, error)
}

// RadarrScanner reconciles configured Radarr servers into canonical movie
// availability records.
type RadarrScanner struct {
	*Base[servarr.RadarrMovie]
	processor *reconcile.Processor
	newClient func(server config.ServerConfig) MovieCatalog
}

// NewRadarrScanner creates a new Radarr scanner
func NewRadarrScanner(processor *reconcile.Processor, logger *logrus.Logger, opts ...BaseOption[servarr.RadarrMovie]) *RadarrScanner {
	scanner := &RadarrScanner{
		Base:      NewBase("Radarr Scan", logger, opts...),
		processor: processor,
	}
	scanner.newClient = func(server config.ServerConfig) MovieCatalog {
		return servarr.NewRadarrClient(server, logger)
	}
	return scanner
}

// Run performs one full reconciliation pass over the given server snapshot.
func (s *RadarrScanner) Run(ctx context.Context, servers []config.ServerConfig) error {
	gen := s.StartRun()
	defer s.EndRun(gen)

	enable4k := config.Any4k(servers)
	if enable4k {
		s.log().Info("At least one 4K Radarr server was detected, 4K movie detection is enabled")
	}

	servers = config.DedupServers(servers)
	s.SetServers(gen, serverNames(servers))

	for _, server := range servers {
		if s.Superseded(gen) {
			s.log().WithError(ErrSuperseded).Error("Scan interrupted")
			return ErrSuperseded
		}
		if !server.SyncEnabled {
			s.log().WithField("server", server.Name).Info("Sync not enabled, skipping Radarr server")
			continue
		}

		s.SetCurrentServer(gen, server.Name)
		s.log().WithField("server", server.Name).Info("Beginning to process Radarr server")

		movies, err := s.newClient(server).GetMovies(ctx)
		if err != nil {
			s.log().WithError(err).WithField("server", server.Name).Error("Failed to fetch movie catalog, skipping server")
			continue
		}
		s.SetItems(gen, movies)

		server := server
		is4k := enable4k && server.Is4k
		if err := s.Loop(ctx, gen, func(ctx context.Context, movie servarr.RadarrMovie) {
			s.processMovie(ctx, server, is4k, movie)
		}); err != nil {
			s.log().WithError(err).Error("Scan interrupted")
			return err
		}
	}

	s.log().Info("Radarr scan complete")
	return nil
}

func (s *RadarrScanner) processMovie(ctx context.Context, server config.ServerConfig, is4k bool, movie servarr.RadarrMovie) {
	if !movie.Monitored && !movie.HasFile {
		s.log().WithField("title", movie.Title).Debug("Title is unmonitored and has not been downloaded, skipping item")
		return
	}

	_, err := s.processor.ProcessMovie(ctx, strconv.Itoa(movie.TmdbID), reconcile.Options{
		Is4k:                is4k,
		Processing:          !movie.HasFile,
		Title:               movie.Title,
		ServiceID:           server.ID,
		ExternalServiceID:   movie.ID,
		ExternalServiceSlug: movie.TitleSlug,
	})
	if err != nil {
		s.log().WithError(err).WithField("title", movie.Title).Error("Failed to process Radarr media")
	}
}

func serverNames(servers []config.ServerConfig) []string {
	names := make([]string, 0, len(servers))
	for _, server := range servers {
		names = append(names, server.Name)
	}
	return names
}
