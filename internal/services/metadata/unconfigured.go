package metadata

import (
	"context"
	"errors"

	"github.com/amaumene/reconarr/internal/models"
)

// ErrUnconfigured is returned when no catalog endpoint is configured.
var ErrUnconfigured = errors.New("no metadata endpoint configured")

// Unconfigured is a stand-in provider used when no catalog endpoint is set.
// Lookups fail, which the completion cascade treats like any other metadata
// failure: logged and swallowed.
type Unconfigured struct{}

// GetDetails always fails.
func (Unconfigured) GetDetails(ctx context.Context, mediaType models.MediaType, externalID string) (*Details, error) {
	return nil, ErrUnconfigured
}
