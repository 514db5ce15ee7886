package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/reconarr/internal/models"
	"github.com/amaumene/reconarr/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const maxConflictRetries = 4

// Store is the persistence surface the engine needs. models.Database
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	GetMediaByExternalID(mediaType models.MediaType, externalID string) (*models.Media, error)
	CreateMedia(media *models.Media) error
	UpdateMedia(media *models.Media) error
	GetRequestsByMediaID(mediaID uint64) ([]*models.MediaRequest, error)
	UpdateRequest(request *models.MediaRequest) error
}

// Subscriber reacts to a confirmed media save. Calls happen after the write,
// on the upserting goroutine; implementations must tolerate being invoked
// more than once for the same transition.
type Subscriber interface {
	MediaUpdated(ctx context.Context, before, after *models.Media)
}

// Options carries one external observation into an upsert.
type Options struct {
	Is4k                bool
	Processing          bool
	Title               string
	ServiceID           int
	ExternalServiceID   int
	ExternalServiceSlug string
}

// ProcessableSeason is one season's download state as observed on a server.
// Episode counts go into Episodes or Episodes4k depending on the server tier.
type ProcessableSeason struct {
	SeasonNumber  int
	TotalEpisodes int
	Episodes      int
	Episodes4k    int
	Is4kOverride  bool
	Processing    bool
}

// Result reports what an upsert did to the relevant status track.
type Result struct {
	Media          *models.Media
	Transitioned   bool
	PreviousStatus models.MediaStatus
}

// Processor is the single point of truth for turning external observations
// into canonical Media/Season status transitions.
type Processor struct {
	store       Store
	lock        *utils.KeyLock
	subscribers []Subscriber
	logger      *logrus.Logger
}

// NewProcessor creates a new upsert processor
func NewProcessor(store Store, logger *logrus.Logger) *Processor {
	return &Processor{
		store:  store,
		lock:   utils.NewKeyLock(),
		logger: logger,
	}
}

// Subscribe registers a subscriber for confirmed transitions.
func (p *Processor) Subscribe(subscriber Subscriber) {
	p.subscribers = append(p.subscribers, subscriber)
}

// ProcessMovie upserts one movie observation.
func (p *Processor) ProcessMovie(ctx context.Context, externalID string, opts Options) (*Result, error) {
	return p.processSimple(ctx, models.MediaTypeMovie, externalID, opts)
}

// ProcessGroup upserts one album (release group) observation.
func (p *Processor) ProcessGroup(ctx context.Context, externalID string, opts Options) (*Result, error) {
	return p.processSimple(ctx, models.MediaTypeMusic, externalID, opts)
}

func (p *Processor) processSimple(ctx context.Context, mediaType models.MediaType, externalID string, opts Options) (*Result, error) {
	unlock := p.lock.Lock(string(mediaType) + ":" + externalID)
	defer unlock()

	var result *Result
	err := p.retryOnConflict(ctx, func() error {
		var err error
		result, err = p.upsertSimple(ctx, mediaType, externalID, opts)
		return err
	})
	return result, err
}

func (p *Processor) upsertSimple(ctx context.Context, mediaType models.MediaType, externalID string, opts Options) (*Result, error) {
	newStatus := models.MediaStatusAvailable
	if opts.Processing {
		newStatus = models.MediaStatusProcessing
	}

	existing, err := p.store.GetMediaByExternalID(mediaType, externalID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}

		media := &models.Media{
			ExternalID: externalID,
			MediaType:  mediaType,
			Status:     models.MediaStatusUnknown,
			Status4k:   models.MediaStatusUnknown,
		}
		media.SetTrackStatus(opts.Is4k, newStatus)
		media.LastStatusChangeAt = time.Now()
		applyServiceFields(media, opts)

		if err := p.store.CreateMedia(media); err != nil {
			return nil, err
		}
		p.log(opts.Title, mediaType).WithField("status", newStatus).Info("Saved new media")

		p.notifySubscribers(ctx, nil, media)
		return &Result{Media: media, Transitioned: true, PreviousStatus: models.MediaStatusUnknown}, nil
	}

	before := existing.Clone()
	previous := existing.TrackStatus(opts.Is4k)

	transitioned := false
	if previous != newStatus && allowTransition(previous, newStatus) {
		existing.SetTrackStatus(opts.Is4k, newStatus)
		existing.LastStatusChangeAt = time.Now()
		transitioned = true
	}

	changed := applyServiceFields(existing, opts)
	if !transitioned && !changed {
		p.log(opts.Title, mediaType).Debug("Title already exists and no changes detected")
		return &Result{Media: existing, Transitioned: false, PreviousStatus: previous}, nil
	}

	if err := p.store.UpdateMedia(existing); err != nil {
		return nil, err
	}
	p.log(opts.Title, mediaType).Info("Media exists, changes detected and the title will be updated")

	if transitioned {
		p.notifySubscribers(ctx, before, existing)
	}
	return &Result{Media: existing, Transitioned: transitioned, PreviousStatus: previous}, nil
}

// ProcessShow upserts one series observation, including per-season state.
func (p *Processor) ProcessShow(ctx context.Context, externalID string, seasons []ProcessableSeason, opts Options) (*Result, error) {
	unlock := p.lock.Lock(string(models.MediaTypeTV) + ":" + externalID)
	defer unlock()

	var result *Result
	err := p.retryOnConflict(ctx, func() error {
		var err error
		result, err = p.upsertShow(ctx, externalID, seasons, opts)
		return err
	})
	return result, err
}

func (p *Processor) upsertShow(ctx context.Context, externalID string, seasons []ProcessableSeason, opts Options) (*Result, error) {
	existing, err := p.store.GetMediaByExternalID(models.MediaTypeTV, externalID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}

		media := &models.Media{
			ExternalID: externalID,
			MediaType:  models.MediaTypeTV,
			Status:     models.MediaStatusUnknown,
			Status4k:   models.MediaStatusUnknown,
		}
		for _, season := range seasons {
			media.Seasons = append(media.Seasons, models.Season{
				SeasonNumber: season.SeasonNumber,
				Status:       seasonTarget(season, false),
				Status4k:     seasonTarget(season, true),
			})
		}
		p.applyAggregates(media)
		media.LastStatusChangeAt = time.Now()
		applyServiceFields(media, opts)

		if err := p.store.CreateMedia(media); err != nil {
			return nil, err
		}
		p.log(opts.Title, models.MediaTypeTV).WithFields(logrus.Fields{
			"status":    media.Status,
			"status_4k": media.Status4k,
		}).Info("Saved new media")

		p.notifySubscribers(ctx, nil, media)
		return &Result{Media: media, Transitioned: true, PreviousStatus: models.MediaStatusUnknown}, nil
	}

	before := existing.Clone()
	previous := existing.TrackStatus(opts.Is4k)

	statusChanged := false
	for _, season := range seasons {
		for _, is4k := range []bool{false, true} {
			target := seasonTarget(season, is4k)
			if target == models.MediaStatusUnknown {
				continue
			}

			current := existing.Season(season.SeasonNumber)
			if current == nil {
				existing.Seasons = append(existing.Seasons, models.Season{SeasonNumber: season.SeasonNumber})
				current = existing.Season(season.SeasonNumber)
			}
			if current.TrackStatus(is4k) != target && allowTransition(current.TrackStatus(is4k), target) {
				current.SetTrackStatus(is4k, target)
				statusChanged = true
			}
		}
	}

	if p.applyAggregates(existing) {
		statusChanged = true
	}
	if statusChanged {
		existing.LastStatusChangeAt = time.Now()
	}

	changed := applyServiceFields(existing, opts)
	if !statusChanged && !changed {
		p.log(opts.Title, models.MediaTypeTV).Debug("Title already exists and no changes detected")
		return &Result{Media: existing, Transitioned: false, PreviousStatus: previous}, nil
	}

	if err := p.store.UpdateMedia(existing); err != nil {
		return nil, err
	}
	p.log(opts.Title, models.MediaTypeTV).Info("Updating existing title")

	if statusChanged {
		p.notifySubscribers(ctx, before, existing)
	}
	return &Result{
		Media:          existing,
		Transitioned:   existing.TrackStatus(opts.Is4k) != previous,
		PreviousStatus: previous,
	}, nil
}

// seasonTarget derives the status one observation implies for one season
// track. UNKNOWN means the observation carries no information for the track.
func seasonTarget(season ProcessableSeason, is4k bool) models.MediaStatus {
	episodes := season.Episodes
	if is4k {
		episodes = season.Episodes4k
	}

	switch {
	case episodes > 0 && episodes == season.TotalEpisodes:
		return models.MediaStatusAvailable
	case episodes > 0:
		return models.MediaStatusPartiallyAvailable
	case season.Processing && season.Is4kOverride == is4k:
		return models.MediaStatusProcessing
	default:
		return models.MediaStatusUnknown
	}
}

// applyAggregates recomputes both media-level tracks from season statuses:
// all seasons available means available, some means partially available,
// none means processing if anything is still processing, otherwise the track
// is left alone. Reports whether a track changed.
func (p *Processor) applyAggregates(media *models.Media) bool {
	changed := false
	for _, is4k := range []bool{false, true} {
		available := 0
		partial := 0
		processing := 0
		for i := range media.Seasons {
			switch media.Seasons[i].TrackStatus(is4k) {
			case models.MediaStatusAvailable:
				available++
			case models.MediaStatusPartiallyAvailable:
				partial++
			case models.MediaStatusProcessing:
				processing++
			}
		}

		target := models.MediaStatusUnknown
		switch {
		case available > 0 && available == len(media.Seasons):
			target = models.MediaStatusAvailable
		case available > 0 || partial > 0:
			target = models.MediaStatusPartiallyAvailable
		case processing > 0:
			target = models.MediaStatusProcessing
		}
		if target == models.MediaStatusUnknown {
			continue
		}

		current := media.TrackStatus(is4k)
		if current != target && allowTransition(current, target) {
			media.SetTrackStatus(is4k, target)
			changed = true
		}
	}
	return changed
}

// allowTransition enforces the monotonic status model: tracks below
// PARTIALLY_AVAILABLE move freely, tracks at or above it only move up. A
// single server losing visibility of an available title never resets it.
func allowTransition(current, target models.MediaStatus) bool {
	if current.Downgradable() {
		return true
	}
	return target.Rank() > current.Rank()
}

// applyServiceFields updates the tier-scoped traceability fields, reporting
// whether anything changed.
func applyServiceFields(media *models.Media, opts Options) bool {
	changed := false
	if opts.Is4k {
		if opts.ServiceID != 0 && media.ServiceID4k != opts.ServiceID {
			media.ServiceID4k = opts.ServiceID
			changed = true
		}
		if opts.ExternalServiceID != 0 && media.ExternalServiceID4k != opts.ExternalServiceID {
			media.ExternalServiceID4k = opts.ExternalServiceID
			changed = true
		}
		if opts.ExternalServiceSlug != "" && media.ExternalServiceSlug4k != opts.ExternalServiceSlug {
			media.ExternalServiceSlug4k = opts.ExternalServiceSlug
			changed = true
		}
		return changed
	}

	if opts.ServiceID != 0 && media.ServiceID != opts.ServiceID {
		media.ServiceID = opts.ServiceID
		changed = true
	}
	if opts.ExternalServiceID != 0 && media.ExternalServiceID != opts.ExternalServiceID {
		media.ExternalServiceID = opts.ExternalServiceID
		changed = true
	}
	if opts.ExternalServiceSlug != "" && media.ExternalServiceSlug != opts.ExternalServiceSlug {
		media.ExternalServiceSlug = opts.ExternalServiceSlug
		changed = true
	}
	return changed
}

// retryOnConflict re-runs the read-modify-write when a concurrent upsert won
// the race on the same row.
func (p *Processor) retryOnConflict(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrConflict) {
			p.logger.Debug("Upsert hit a concurrent write, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxConflictRetries), ctx))
}

func (p *Processor) notifySubscribers(ctx context.Context, before, after *models.Media) {
	for _, subscriber := range p.subscribers {
		subscriber.MediaUpdated(ctx, before, after)
	}
}

func (p *Processor) log(title string, mediaType models.MediaType) *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"title": title,
		"type":  mediaType,
	})
}
