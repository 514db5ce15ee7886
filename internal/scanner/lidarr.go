package scanner

import (
	"context"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/reconcile"
	"github.com/amaumene/reconarr/internal/services/servarr"
	"github.com/sirupsen/logrus"
)

// AlbumCatalog is the slice of the Lidarr API this scanner consumes.
type AlbumCatalog interface {
	GetAlbums(ctx context.Context) ([]servarr.LidarrAlbum, error)
}

// LidarrScanner reconciles configured Lidarr servers into canonical music
// availability records.
type LidarrScanner struct {
	*Base[servarr.LidarrAlbum]
	processor *reconcile.Processor
	newClient func(server config.ServerConfig) AlbumCatalog
}

// NewLidarrScanner creates a new Lidarr scanner
func NewLidarrScanner(processor *reconcile.Processor, logger *logrus.Logger, opts ...BaseOption[servarr.LidarrAlbum]) *LidarrScanner {
	scanner := &LidarrScanner{
		Base:      NewBase("Lidarr Scan", logger, opts...),
		processor: processor,
	}
	scanner.newClient = func(server config.ServerConfig) AlbumCatalog {
		return servarr.NewLidarrClient(server, logger)
	}
	return scanner
}

// Run performs one full reconciliation pass over the given server snapshot.
func (s *LidarrScanner) Run(ctx context.Context, servers []config.ServerConfig) error {
	gen := s.StartRun()
	defer s.EndRun(gen)

	enable4k := config.Any4k(servers)
	if enable4k {
		s.log().Info("At least one 4K Lidarr server was detected, 4K album detection is enabled")
	}

	servers = config.DedupServers(servers)
	s.SetServers(gen, serverNames(servers))

	for _, server := range servers {
		if s.Superseded(gen) {
			s.log().WithError(ErrSuperseded).Error("Scan interrupted")
			return ErrSuperseded
		}
		if !server.SyncEnabled {
			s.log().WithField("server", server.Name).Info("Sync not enabled, skipping Lidarr server")
			continue
		}

		s.SetCurrentServer(gen, server.Name)
		s.log().WithField("server", server.Name).Info("Beginning to process Lidarr server")

		albums, err := s.newClient(server).GetAlbums(ctx)
		if err != nil {
			s.log().WithError(err).WithField("server", server.Name).Error("Failed to fetch album catalog, skipping server")
			continue
		}
		s.SetItems(gen, albums)

		server := server
		is4k := enable4k && server.Is4k
		if err := s.Loop(ctx, gen, func(ctx context.Context, album servarr.LidarrAlbum) {
			s.processAlbum(ctx, server, is4k, album)
		}); err != nil {
			s.log().WithError(err).Error("Scan interrupted")
			return err
		}
	}

	s.log().Info("Lidarr scan complete")
	return nil
}

func (s *LidarrScanner) processAlbum(ctx context.Context, server config.ServerConfig, is4k bool, album servarr.LidarrAlbum) {
	if !album.Monitored && !album.AnyReleaseOk {
		s.log().WithField("title", album.Title).Debug("Title is unmonitored and has not been downloaded, skipping item")
		return
	}

	_, err := s.processor.ProcessGroup(ctx, album.ForeignAlbumID, reconcile.Options{
		Is4k:              is4k,
		Processing:        !album.AnyReleaseOk,
		Title:             album.Title,
		ServiceID:         server.ID,
		ExternalServiceID: album.ID,
	})
	if err != nil {
		s.log().WithError(err).WithField("title", album.Title).Error("Failed to process Lidarr media")
	}
}
