package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = bolthold.ErrNotFound

// ErrConflict is returned when an update races against a concurrent write to
// the same row. Callers are expected to re-read and retry.
var ErrConflict = errors.New("revision conflict")

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Media operations

// CreateMedia creates a new media row. It fails if a row already exists for
// the same (mediaType, externalID) pair.
func (db *Database) CreateMedia(media *Media) error {
	existing, err := db.GetMediaByExternalID(media.MediaType, media.ExternalID)
	if err == nil && existing != nil {
		return fmt.Errorf("media already exists for %s/%s", media.MediaType, media.ExternalID)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	media.Revision = 1
	media.CreatedAt = time.Now()
	media.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), media)
}

// UpdateMedia updates an existing media row. The stored revision must match
// the caller's copy, otherwise ErrConflict is returned.
func (db *Database) UpdateMedia(media *Media) error {
	var current Media
	if err := db.store.Get(media.ID, &current); err != nil {
		return err
	}
	if current.Revision != media.Revision {
		return ErrConflict
	}

	media.Revision++
	media.UpdatedAt = time.Now()
	return db.store.Update(media.ID, media)
}

// GetMediaByID retrieves a media row by ID
func (db *Database) GetMediaByID(id uint64) (*Media, error) {
	var media Media
	err := db.store.Get(id, &media)
	if err != nil {
		return nil, err
	}
	return &media, nil
}

// GetMediaByExternalID retrieves the media row for a (mediaType, externalID)
// pair. This pair is the row's logical identity.
func (db *Database) GetMediaByExternalID(mediaType MediaType, externalID string) (*Media, error) {
	var media Media
	err := db.store.FindOne(&media,
		bolthold.Where("ExternalID").Eq(externalID).Index("ExternalID").
			And("MediaType").Eq(mediaType))
	if err != nil {
		return nil, err
	}
	return &media, nil
}

// GetAllMedia retrieves all media rows
func (db *Database) GetAllMedia() ([]*Media, error) {
	var media []*Media
	err := db.store.Find(&media, nil)
	return media, err
}

// Request operations

// CreateRequest creates a new media request
func (db *Database) CreateRequest(request *MediaRequest) error {
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), request)
}

// UpdateRequest updates an existing media request
func (db *Database) UpdateRequest(request *MediaRequest) error {
	request.UpdatedAt = time.Now()
	return db.store.Update(request.ID, request)
}

// GetRequestByID retrieves a media request by ID
func (db *Database) GetRequestByID(id uint64) (*MediaRequest, error) {
	var request MediaRequest
	err := db.store.Get(id, &request)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// GetRequestsByMediaID retrieves all requests against a media row
func (db *Database) GetRequestsByMediaID(mediaID uint64) ([]*MediaRequest, error) {
	var requests []*MediaRequest
	err := db.store.Find(&requests, bolthold.Where("MediaID").Eq(mediaID).Index("MediaID"))
	return requests, err
}
