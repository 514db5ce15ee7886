package servarr

import (
	"context"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/sirupsen/logrus"
)

// LidarrAlbum represents an album in a Lidarr catalog
type LidarrAlbum struct {
	ID             int    `json:"id"`
	ForeignAlbumID string `json:"foreignAlbumId"` // MusicBrainz release group ID
	Title          string `json:"title"`
	Monitored      bool   `json:"monitored"`
	AnyReleaseOk   bool   `json:"anyReleaseOk"`
}

// LidarrClient wraps the Lidarr v1 API
type LidarrClient struct {
	*client
}

// NewLidarrClient creates a client scoped to one Lidarr server
func NewLidarrClient(server config.ServerConfig, logger *logrus.Logger) *LidarrClient {
	return &LidarrClient{client: newClient(server, "/api/v1", logger)}
}

// GetAlbums fetches the complete album catalog
func (c *LidarrClient) GetAlbums(ctx context.Context) ([]LidarrAlbum, error) {
	var albums []LidarrAlbum
	if err := c.get(ctx, "/album", &albums); err != nil {
		return nil, err
	}
	return albums, nil
}
