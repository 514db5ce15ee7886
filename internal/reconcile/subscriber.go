package reconcile

import (
	"context"
	"fmt"

	"github.com/amaumene/reconarr/internal/models"
	"github.com/amaumene/reconarr/internal/notifications"
	"github.com/amaumene/reconarr/internal/services/metadata"
	"github.com/sirupsen/logrus"
)

// MetadataProvider fetches display metadata for notification enrichment.
type MetadataProvider interface {
	GetDetails(ctx context.Context, mediaType models.MediaType, externalID string) (*metadata.Details, error)
}

// Notifier dispatches a notification without ever failing the caller.
type Notifier interface {
	Dispatch(event string, payload notifications.Payload)
}

// CascadeSubscriber implements the two reactive rules that follow a media
// status transition:
//
//   - auto-approval: a track reaching AVAILABLE advances matching PENDING
//     requests to APPROVED; for TV a request only qualifies once every one of
//     its requested seasons is available on the matching tier.
//   - completion notification: a request transitioning to COMPLETED (reported
//     through RequestUpdated) triggers a best-effort "media available"
//     notification to the requester when its availability condition holds.
//
// Both rules are idempotent on request state; running them twice for the
// same transition leaves requests unchanged. Duplicate notifications are
// possible and accepted.
type CascadeSubscriber struct {
	store    Store
	metadata MetadataProvider
	notifier Notifier
	logger   *logrus.Logger
}

// NewCascadeSubscriber creates the cascade subscriber
func NewCascadeSubscriber(store Store, provider MetadataProvider, notifier Notifier, logger *logrus.Logger) *CascadeSubscriber {
	return &CascadeSubscriber{
		store:    store,
		metadata: provider,
		notifier: notifier,
		logger:   logger,
	}
}

// MediaUpdated reacts to a confirmed media save. before is nil for rows the
// scanner just created.
func (s *CascadeSubscriber) MediaUpdated(ctx context.Context, before, after *models.Media) {
	for _, is4k := range []bool{false, true} {
		if !s.tierChanged(before, after, is4k) {
			continue
		}

		requests, err := s.store.GetRequestsByMediaID(after.ID)
		if err != nil {
			s.logger.WithError(err).WithField("media_id", after.ID).Error("Failed to load requests for cascade")
			continue
		}

		for _, request := range requests {
			if request.Is4k != is4k {
				continue
			}
			if !s.requestSatisfied(after, request) {
				continue
			}

			// Already approved, declined or completed requests are left
			// alone, re-running the cascade is a no-op
			if request.Status == models.RequestStatusPending {
				s.approve(request)
			}
		}
	}
}

// RequestUpdated reacts to a request's own status change. The request API
// calls it after marking a request COMPLETED; this engine never sets that
// status itself.
func (s *CascadeSubscriber) RequestUpdated(ctx context.Context, media *models.Media, before, after *models.MediaRequest) {
	if after.Status != models.RequestStatusCompleted {
		return
	}
	if before != nil && before.Status == models.RequestStatusCompleted {
		return
	}
	if !s.requestSatisfied(media, after) {
		return
	}
	s.notifyAvailable(ctx, media, after)
}

// tierChanged reports whether this save changed anything the cascade cares
// about on one tier: the media track reaching AVAILABLE, or, for TV, new
// seasons reaching AVAILABLE.
func (s *CascadeSubscriber) tierChanged(before, after *models.Media, is4k bool) bool {
	if after.TrackStatus(is4k) == models.MediaStatusAvailable &&
		(before == nil || before.TrackStatus(is4k) != models.MediaStatusAvailable) {
		return true
	}
	if after.MediaType == models.MediaTypeTV {
		return len(newlyAvailableSeasons(before, after, is4k)) > 0
	}
	return false
}

// requestSatisfied reports whether a request's availability condition holds:
// the matching media track AVAILABLE for movies and music, every requested
// season AVAILABLE for TV.
func (s *CascadeSubscriber) requestSatisfied(media *models.Media, request *models.MediaRequest) bool {
	if media.MediaType != models.MediaTypeTV {
		return media.TrackStatus(request.Is4k) == models.MediaStatusAvailable
	}

	if len(request.Seasons) == 0 {
		return media.TrackStatus(request.Is4k) == models.MediaStatusAvailable
	}

	available := make(map[int]bool)
	for _, number := range media.AvailableSeasons(request.Is4k) {
		available[number] = true
	}
	for _, number := range request.Seasons {
		if !available[number] {
			return false
		}
	}
	return true
}

func (s *CascadeSubscriber) approve(request *models.MediaRequest) {
	request.Status = models.RequestStatusApproved
	if err := s.store.UpdateRequest(request); err != nil {
		s.logger.WithError(err).WithField("request_id", request.ID).Error("Failed to auto-approve request")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"media_id":   request.MediaID,
		"is_4k":      request.Is4k,
	}).Info("Auto-approved request, all requested media is available")
}

// notifyAvailable enriches and dispatches one "media available" notification.
// Every failure here is logged and swallowed: the request stays COMPLETED no
// matter what happens to metadata lookup or delivery.
func (s *CascadeSubscriber) notifyAvailable(ctx context.Context, media *models.Media, request *models.MediaRequest) {
	details, err := s.metadata.GetDetails(ctx, media.MediaType, media.ExternalID)
	if err != nil {
		s.logger.WithError(err).WithField("media_id", media.ID).Error("Something went wrong sending media notification(s)")
		return
	}

	subject := details.Title
	if details.ReleaseYear > 0 {
		subject = fmt.Sprintf("%s (%d)", details.Title, details.ReleaseYear)
	}

	s.notifier.Dispatch(notifications.EventMediaAvailable, notifications.Payload{
		Subject:    subject,
		Message:    truncate(details.Overview, 500),
		Image:      details.PosterPath,
		MediaID:    media.ID,
		ExternalID: media.ExternalID,
		MediaType:  string(media.MediaType),
		RequestID:  request.ID,
		UserID:     request.RequestedBy,
		Is4k:       request.Is4k,
		Seasons:    request.Seasons,
	})
}

// newlyAvailableSeasons returns season numbers AVAILABLE on the given tier in
// after but not in before.
func newlyAvailableSeasons(before, after *models.Media, is4k bool) []int {
	previous := make(map[int]bool)
	if before != nil {
		for _, number := range before.AvailableSeasons(is4k) {
			previous[number] = true
		}
	}

	var changed []int
	for _, number := range after.AvailableSeasons(is4k) {
		if !previous[number] {
			changed = append(changed, number)
		}
	}
	return changed
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
