package servarr

import (
	"context"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/sirupsen/logrus"
)

// RadarrMovie represents a movie in a Radarr catalog
type RadarrMovie struct {
	ID        int    `json:"id"`
	TmdbID    int    `json:"tmdbId"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	Monitored bool   `json:"monitored"`
	HasFile   bool   `json:"hasFile"`
}

// RadarrClient wraps the Radarr v3 API
type RadarrClient struct {
	*client
}

// NewRadarrClient creates a client scoped to one Radarr server
func NewRadarrClient(server config.ServerConfig, logger *logrus.Logger) *RadarrClient {
	return &RadarrClient{client: newClient(server, "/api/v3", logger)}
}

// GetMovies fetches the complete movie catalog
func (c *RadarrClient) GetMovies(ctx context.Context) ([]RadarrMovie, error) {
	var movies []RadarrMovie
	if err := c.get(ctx, "/movie", &movies); err != nil {
		return nil, err
	}
	return movies, nil
}
