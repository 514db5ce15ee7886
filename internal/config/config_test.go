package config

import (
	"testing"

	"github.com/amaumene/reconarr/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDedupServersKeepsFirstOccurrence(t *testing.T) {
	servers := []ServerConfig{
		{ID: 1, Name: "main", Hostname: "radarr.local", Port: 7878},
		{ID: 2, Name: "duplicate", Hostname: "radarr.local", Port: 7878},
		{ID: 3, Name: "other", Hostname: "radarr.local", Port: 7879},
	}

	deduped := DedupServers(servers)

	assert.Len(t, deduped, 2)
	assert.Equal(t, 1, deduped[0].ID)
	assert.Equal(t, 3, deduped[1].ID)
}

func TestDedupServersHonorsBasePath(t *testing.T) {
	servers := []ServerConfig{
		{ID: 1, Hostname: "shared.local", Port: 443, BaseURL: "/radarr"},
		{ID: 2, Hostname: "shared.local", Port: 443, BaseURL: "/radarr4k"},
	}

	assert.Len(t, DedupServers(servers), 2)
}

func TestDedupServersEmpty(t *testing.T) {
	assert.Empty(t, DedupServers(nil))
}

func TestAny4k(t *testing.T) {
	assert.False(t, Any4k(nil))
	assert.False(t, Any4k([]ServerConfig{{Name: "standard"}}))
	assert.True(t, Any4k([]ServerConfig{
		{Name: "standard"},
		{Name: "uhd", Is4k: true},
	}))
}

func TestServersByMediaType(t *testing.T) {
	cfg := &Config{
		Radarr: []ServerConfig{{Name: "radarr"}},
		Sonarr: []ServerConfig{{Name: "sonarr"}},
		Lidarr: []ServerConfig{{Name: "lidarr"}},
	}

	assert.Equal(t, "radarr", cfg.Servers(models.MediaTypeMovie)[0].Name)
	assert.Equal(t, "sonarr", cfg.Servers(models.MediaTypeTV)[0].Name)
	assert.Equal(t, "lidarr", cfg.Servers(models.MediaTypeMusic)[0].Name)
	assert.Nil(t, cfg.Servers(models.MediaType("unknown")))
}
