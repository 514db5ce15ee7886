package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/amaumene/reconarr/internal/config"
	"github.com/amaumene/reconarr/internal/models"
	"github.com/amaumene/reconarr/internal/notifications"
	"github.com/amaumene/reconarr/internal/reconcile"
	"github.com/amaumene/reconarr/internal/services/metadata"
	"github.com/amaumene/reconarr/internal/services/servarr"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMetadata struct{}

func (stubMetadata) GetDetails(_ context.Context, _ models.MediaType, _ string) (*metadata.Details, error) {
	return &metadata.Details{Title: "Some Movie"}, nil
}

type stubNotifier struct{}

func (stubNotifier) Dispatch(string, notifications.Payload) {}

type fakeMovieCatalog struct {
	movies []servarr.RadarrMovie
	err    error
	calls  int
}

func (f *fakeMovieCatalog) GetMovies(_ context.Context) ([]servarr.RadarrMovie, error) {
	f.calls++
	return f.movies, f.err
}

func openTestDatabase(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newRadarrTestScanner(t *testing.T, db *models.Database, catalog MovieCatalog) *RadarrScanner {
	t.Helper()
	logger, _ := test.NewNullLogger()
	processor := reconcile.NewProcessor(db, logger)
	scanner := NewRadarrScanner(processor, logger, WithUpdateRate[servarr.RadarrMovie](0))
	scanner.newClient = func(_ config.ServerConfig) MovieCatalog {
		return catalog
	}
	return scanner
}

func radarrServer(id int) config.ServerConfig {
	return config.ServerConfig{
		ID:          id,
		Name:        "radarr-main",
		Hostname:    "radarr.local",
		Port:        7878,
		APIKey:      "key",
		SyncEnabled: true,
	}
}

func TestRadarrRunUpsertsDownloadedMovie(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 10, TmdbID: 42, Title: "Some Movie", TitleSlug: "some-movie", Monitored: true, HasFile: true},
	}}
	scanner := newRadarrTestScanner(t, db, catalog)

	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1)})
	require.NoError(t, err)

	media, err := db.GetMediaByExternalID(models.MediaTypeMovie, "42")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusAvailable, media.Status)
	assert.Equal(t, 1, media.ServiceID)
	assert.Equal(t, 10, media.ExternalServiceID)
	assert.Equal(t, "some-movie", media.ExternalServiceSlug)
	assert.False(t, scanner.Status().Running)
}

func TestRadarrRunMarksMonitoredMissingAsProcessing(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 11, TmdbID: 43, Title: "Awaited Movie", Monitored: true, HasFile: false},
	}}
	scanner := newRadarrTestScanner(t, db, catalog)

	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1)})
	require.NoError(t, err)

	media, err := db.GetMediaByExternalID(models.MediaTypeMovie, "43")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusProcessing, media.Status)
}

func TestRadarrRunSkipsUnmonitoredUndownloaded(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 12, TmdbID: 44, Title: "Ignored Movie", Monitored: false, HasFile: false},
	}}
	scanner := newRadarrTestScanner(t, db, catalog)

	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1)})
	require.NoError(t, err)

	_, err = db.GetMediaByExternalID(models.MediaTypeMovie, "44")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRadarrRunCollapsesDuplicateServers(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 10, TmdbID: 42, Title: "Some Movie", Monitored: true, HasFile: true},
	}}
	scanner := newRadarrTestScanner(t, db, catalog)

	err := scanner.Run(context.Background(), []config.ServerConfig{
		radarrServer(1),
		radarrServer(2),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.calls)

	media, err := db.GetMediaByExternalID(models.MediaTypeMovie, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, media.ServiceID)
}

func TestRadarrRunSkipsSyncDisabledServer(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{}
	scanner := newRadarrTestScanner(t, db, catalog)

	server := radarrServer(1)
	server.SyncEnabled = false
	err := scanner.Run(context.Background(), []config.ServerConfig{server})
	require.NoError(t, err)

	assert.Equal(t, 0, catalog.calls)
}

func TestRadarrRunContinuesPastFetchError(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{err: errors.New("connection refused")}
	scanner := newRadarrTestScanner(t, db, catalog)

	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1)})
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.calls)
	assert.False(t, scanner.Status().Running)
}

func TestRadarr4kServerFillsSecondTrack(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 10, TmdbID: 42, Title: "Some Movie", Monitored: true, HasFile: true},
	}}
	scanner := newRadarrTestScanner(t, db, catalog)

	server := radarrServer(2)
	server.Name = "radarr-4k"
	server.Is4k = true
	err := scanner.Run(context.Background(), []config.ServerConfig{server})
	require.NoError(t, err)

	media, err := db.GetMediaByExternalID(models.MediaTypeMovie, "42")
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusUnknown, media.Status)
	assert.Equal(t, models.MediaStatusAvailable, media.Status4k)
	assert.Equal(t, 2, media.ServiceID4k)
	assert.Equal(t, 0, media.ServiceID)
}

func TestRadarrRunStopsBetweenServersWhenSuperseded(t *testing.T) {
	db := openTestDatabase(t)
	catalog := &fakeMovieCatalog{}
	scanner := newRadarrTestScanner(t, db, catalog)

	// The first server's fetch lands in the middle of a newer run starting
	original := scanner.newClient
	scanner.newClient = func(server config.ServerConfig) MovieCatalog {
		scanner.StartRun()
		return original(server)
	}

	second := radarrServer(2)
	second.Hostname = "radarr-other.local"
	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1), second})

	require.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, 1, catalog.calls)

	// The superseded run must not have clobbered the new session's state
	status := scanner.Status()
	assert.True(t, status.Running)
	assert.Empty(t, status.CurrentServer)
	assert.Zero(t, status.Total)
}

func TestRadarrRunApprovesPendingRequest(t *testing.T) {
	db := openTestDatabase(t)
	logger, _ := test.NewNullLogger()

	// A request created through the request API before the file landed
	media := &models.Media{
		ExternalID: "42",
		MediaType:  models.MediaTypeMovie,
		Status:     models.MediaStatusProcessing,
		Status4k:   models.MediaStatusUnknown,
	}
	require.NoError(t, db.CreateMedia(media))
	request := &models.MediaRequest{MediaID: media.ID, Status: models.RequestStatusPending, RequestedBy: 5}
	require.NoError(t, db.CreateRequest(request))

	processor := reconcile.NewProcessor(db, logger)
	processor.Subscribe(reconcile.NewCascadeSubscriber(db, &stubMetadata{}, &stubNotifier{}, logger))

	catalog := &fakeMovieCatalog{movies: []servarr.RadarrMovie{
		{ID: 10, TmdbID: 42, Title: "Some Movie", Monitored: true, HasFile: true},
	}}
	scanner := NewRadarrScanner(processor, logger, WithUpdateRate[servarr.RadarrMovie](0))
	scanner.newClient = func(_ config.ServerConfig) MovieCatalog { return catalog }

	err := scanner.Run(context.Background(), []config.ServerConfig{radarrServer(1)})
	require.NoError(t, err)

	updated, err := db.GetRequestByID(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, updated.Status)
}
