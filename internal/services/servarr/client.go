package servarr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/sirupsen/logrus"
)

// client handles communication with a single servarr-family server
type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func newClient(server config.ServerConfig, apiVersion string, logger *logrus.Logger) *client {
	return &client{
		baseURL: BuildURL(server, apiVersion),
		apiKey:  server.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// BuildURL assembles the base API URL for a configured server.
func BuildURL(server config.ServerConfig, path string) string {
	scheme := "http"
	if server.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s%s", scheme, server.Hostname, server.Port, server.BaseURL, path)
}

// get performs an authenticated GET request and decodes the JSON response
func (c *client) get(ctx context.Context, path string, result interface{}) error {
	fullURL := c.baseURL + path

	c.logger.WithField("url", fullURL).Debug("Making servarr API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
