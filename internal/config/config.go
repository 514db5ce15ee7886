package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amaumene/reconarr/internal/models"
	"github.com/spf13/viper"
)

// ServerConfig describes one configured library-manager server. Multiple
// servers per kind are allowed; one of them may be the 4K tier instance.
type ServerConfig struct {
	ID          int    `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Hostname    string `mapstructure:"hostname"`
	Port        int    `mapstructure:"port"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	IsDefault   bool   `mapstructure:"is_default"`
	Is4k        bool   `mapstructure:"is_4k"`
	SyncEnabled bool   `mapstructure:"sync_enabled"`
}

// MetadataConfig configures the canonical catalog client used for
// notification enrichment.
type MetadataConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// NotificationConfig configures outbound notification agents.
type NotificationConfig struct {
	WebhookURL        string `mapstructure:"webhook_url"`
	WebhookAuthHeader string `mapstructure:"webhook_auth_header"`
}

// ScanConfig tunes the scanner run loop.
type ScanConfig struct {
	BundleSize int           `mapstructure:"bundle_size"`
	UpdateRate time.Duration `mapstructure:"update_rate"`
}

// Config holds all application configuration
type Config struct {
	Radarr []ServerConfig `mapstructure:"radarr"`
	Sonarr []ServerConfig `mapstructure:"sonarr"`
	Lidarr []ServerConfig `mapstructure:"lidarr"`

	Metadata      MetadataConfig     `mapstructure:"metadata"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Scan          ScanConfig         `mapstructure:"scan"`

	ServerPort   string `mapstructure:"server_port"`
	DatabaseFile string `mapstructure:"database_file"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load loads configuration from config.yaml in CONFIG_DIR (or the working
// directory) with environment variable overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "reconarr")
	}
	viper.AddConfigPath(configDir)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetDefault("server_port", "8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("database_file", filepath.Join(configDir, "reconarr.db"))
	viper.SetDefault("scan.bundle_size", 50)
	viper.SetDefault("scan.update_rate", 4*time.Second)
	viper.SetDefault("metadata.cache_ttl", 15*time.Minute)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return &config, nil
}

// Servers returns the configured server list for a media kind.
func (c *Config) Servers(mediaType models.MediaType) []ServerConfig {
	switch mediaType {
	case models.MediaTypeMovie:
		return c.Radarr
	case models.MediaTypeTV:
		return c.Sonarr
	case models.MediaTypeMusic:
		return c.Lidarr
	default:
		return nil
	}
}

// Any4k reports whether the server list carries a 4K tier. Scanners resolve
// this once per run from their snapshot; a server's own 4K flag only takes
// effect when the fleet actually has a 4K tier.
func Any4k(servers []ServerConfig) bool {
	for _, server := range servers {
		if server.Is4k {
			return true
		}
	}
	return false
}

// DedupServers collapses entries that resolve to the same logical endpoint
// (hostname, port and base path), keeping the first occurrence. An
// administrator registering the same physical server twice would otherwise
// double-process every item.
func DedupServers(servers []ServerConfig) []ServerConfig {
	var result []ServerConfig
	for _, server := range servers {
		duplicate := false
		for _, kept := range result {
			if kept.Hostname == server.Hostname &&
				kept.Port == server.Port &&
				kept.BaseURL == server.BaseURL {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, server)
		}
	}
	return result
}
