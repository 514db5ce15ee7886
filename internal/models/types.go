package models

// MediaType represents the kind of media a record tracks
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeMusic MediaType = "music"
)

// MediaStatus represents the availability of a media item on one quality tier
type MediaStatus string

const (
	MediaStatusUnknown            MediaStatus = "unknown"
	MediaStatusPending            MediaStatus = "pending"
	MediaStatusProcessing         MediaStatus = "processing"
	MediaStatusPartiallyAvailable MediaStatus = "partially_available"
	MediaStatusAvailable          MediaStatus = "available"
)

// Rank orders statuses for the monotonic transition rule
func (s MediaStatus) Rank() int {
	switch s {
	case MediaStatusPending:
		return 1
	case MediaStatusProcessing:
		return 2
	case MediaStatusPartiallyAvailable:
		return 3
	case MediaStatusAvailable:
		return 4
	default:
		return 0
	}
}

// Downgradable reports whether a track at this status may be lowered by a
// later scan observation. A track at PARTIALLY_AVAILABLE or above stays put
// when a single server loses visibility of the title.
func (s MediaStatus) Downgradable() bool {
	return s == MediaStatusUnknown || s == MediaStatusPending || s == MediaStatusProcessing
}

// RequestStatus represents the state of a user's media request.
// Transitions only move forward: pending -> approved -> completed,
// or pending -> declined.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusDeclined  RequestStatus = "declined"
	RequestStatusCompleted RequestStatus = "completed"
)
