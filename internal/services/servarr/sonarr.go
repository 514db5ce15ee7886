package servarr

import (
	"context"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/sirupsen/logrus"
)

// SonarrSeries represents a series in a Sonarr catalog
type SonarrSeries struct {
	ID        int            `json:"id"`
	TvdbID    int            `json:"tvdbId"`
	Title     string         `json:"title"`
	TitleSlug string         `json:"titleSlug"`
	Monitored bool           `json:"monitored"`
	Seasons   []SonarrSeason `json:"seasons"`
}

// SonarrSeason represents one season of a series
type SonarrSeason struct {
	SeasonNumber int               `json:"seasonNumber"`
	Monitored    bool              `json:"monitored"`
	Statistics   *SeasonStatistics `json:"statistics,omitempty"`
}

// SeasonStatistics carries Sonarr's per-season episode counts
type SeasonStatistics struct {
	EpisodeFileCount  int `json:"episodeFileCount"`
	TotalEpisodeCount int `json:"totalEpisodeCount"`
}

// SonarrClient wraps the Sonarr v3 API
type SonarrClient struct {
	*client
}

// NewSonarrClient creates a client scoped to one Sonarr server
func NewSonarrClient(server config.ServerConfig, logger *logrus.Logger) *SonarrClient {
	return &SonarrClient{client: newClient(server, "/api/v3", logger)}
}

// GetSeries fetches the complete series catalog
func (c *SonarrClient) GetSeries(ctx context.Context) ([]SonarrSeries, error) {
	var series []SonarrSeries
	if err := c.get(ctx, "/series", &series); err != nil {
		return nil, err
	}
	return series, nil
}
