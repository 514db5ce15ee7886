package reconcile

import (
	"context"
	"sync"

	"github.com/amaumene/reconarr/internal/models"
)

// memStore is an in-memory Store for tests. It can be primed to report a
// number of revision conflicts before accepting an update.
type memStore struct {
	mu            sync.Mutex
	media         map[uint64]*models.Media
	requests      map[uint64]*models.MediaRequest
	nextID        uint64
	conflictsLeft int
	updateCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		media:    make(map[uint64]*models.Media),
		requests: make(map[uint64]*models.MediaRequest),
	}
}

func (s *memStore) GetMediaByExternalID(mediaType models.MediaType, externalID string) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, media := range s.media {
		if media.MediaType == mediaType && media.ExternalID == externalID {
			return media.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) CreateMedia(media *models.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	media.ID = s.nextID
	s.media[media.ID] = media.Clone()
	return nil
}

func (s *memStore) UpdateMedia(media *models.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateCalls++
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return models.ErrConflict
	}
	s.media[media.ID] = media.Clone()
	return nil
}

func (s *memStore) GetRequestsByMediaID(mediaID uint64) ([]*models.MediaRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []*models.MediaRequest
	for _, request := range s.requests {
		if request.MediaID == mediaID {
			clone := *request
			requests = append(requests, &clone)
		}
	}
	return requests, nil
}

func (s *memStore) UpdateRequest(request *models.MediaRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *memStore) addRequest(request *models.MediaRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	request.ID = s.nextID
	clone := *request
	s.requests[request.ID] = &clone
}

func (s *memStore) requestStatus(id uint64) models.RequestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

func (s *memStore) mediaByExternalID(mediaType models.MediaType, externalID string) *models.Media {
	media, err := s.GetMediaByExternalID(mediaType, externalID)
	if err != nil {
		return nil
	}
	return media
}

// recordSubscriber captures every MediaUpdated call.
type recordSubscriber struct {
	mu      sync.Mutex
	befores []*models.Media
	afters  []*models.Media
}

func (r *recordSubscriber) MediaUpdated(_ context.Context, before, after *models.Media) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.befores = append(r.befores, before)
	r.afters = append(r.afters, after)
}

func (r *recordSubscriber) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.afters)
}
