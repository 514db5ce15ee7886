package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Details is the display metadata attached to "media available" notifications.
type Details struct {
	Title       string `json:"title"`
	ReleaseYear int    `json:"releaseYear"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"posterPath"`
}

// Client fetches display metadata from the canonical catalog. Responses are
// cached because the completion cascade may look up the same title many times
// in one scan.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a new catalog metadata client
func NewClient(cfg config.MetadataConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("metadata base URL is required")
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}, nil
}

// GetDetails fetches display metadata for a title.
func (c *Client) GetDetails(ctx context.Context, mediaType models.MediaType, externalID string) (*Details, error) {
	cacheKey := string(mediaType) + "/" + externalID
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.(*Details), nil
	}

	fullURL := fmt.Sprintf("%s/%s/%s?apikey=%s",
		c.baseURL, mediaType, url.PathEscape(externalID), url.QueryEscape(c.apiKey))

	c.logger.WithFields(logrus.Fields{
		"media_type":  mediaType,
		"external_id": externalID,
	}).Debug("Fetching catalog metadata")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("metadata request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var details Details
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}

	c.cache.Set(cacheKey, &details, cache.DefaultExpiration)

	return &details, nil
}
