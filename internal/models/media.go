package models

import "time"

// Media is the canonical per-title availability record. A row is uniquely
// identified by (MediaType, ExternalID); the scanner never creates duplicates
// for that pair and never deletes rows.
type Media struct {
	ID         uint64    `boltholdKey:"ID"`
	ExternalID string    `boltholdIndex:"ExternalID"` // TMDB ID for movies, TVDB ID for TV, MusicBrainz ID for music
	MediaType  MediaType `boltholdIndex:"MediaType"`

	// Two independently tracked quality tiers
	Status   MediaStatus
	Status4k MediaStatus

	LastStatusChangeAt time.Time

	// TV only: season numbers need not be contiguous
	Seasons []Season

	// Traceability back to the library-manager server that owns each tier
	ServiceID             int
	ServiceID4k           int
	ExternalServiceID     int
	ExternalServiceID4k   int
	ExternalServiceSlug   string
	ExternalServiceSlug4k string

	// Revision guards read-modify-write races across concurrent upserts
	Revision uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackStatus returns the status of the requested quality tier.
func (m *Media) TrackStatus(is4k bool) MediaStatus {
	if is4k {
		return m.Status4k
	}
	return m.Status
}

// SetTrackStatus sets the status of the requested quality tier.
func (m *Media) SetTrackStatus(is4k bool, status MediaStatus) {
	if is4k {
		m.Status4k = status
	} else {
		m.Status = status
	}
}

// Season returns the season with the given number, or nil.
func (m *Media) Season(number int) *Season {
	for i := range m.Seasons {
		if m.Seasons[i].SeasonNumber == number {
			return &m.Seasons[i]
		}
	}
	return nil
}

// AvailableSeasons returns the season numbers at AVAILABLE on the given tier.
func (m *Media) AvailableSeasons(is4k bool) []int {
	var numbers []int
	for i := range m.Seasons {
		if m.Seasons[i].TrackStatus(is4k) == MediaStatusAvailable {
			numbers = append(numbers, m.Seasons[i].SeasonNumber)
		}
	}
	return numbers
}

// Clone returns a deep copy, used to capture before-state for subscribers.
func (m *Media) Clone() *Media {
	clone := *m
	clone.Seasons = make([]Season, len(m.Seasons))
	copy(clone.Seasons, m.Seasons)
	return &clone
}

// Season is a child of a TV Media row. Season statuses are maintained
// independently of the parent's aggregate status.
type Season struct {
	SeasonNumber int
	Status       MediaStatus
	Status4k     MediaStatus
}

// TrackStatus returns the status of the requested quality tier.
func (s *Season) TrackStatus(is4k bool) MediaStatus {
	if is4k {
		return s.Status4k
	}
	return s.Status
}

// SetTrackStatus sets the status of the requested quality tier.
func (s *Season) SetTrackStatus(is4k bool, status MediaStatus) {
	if is4k {
		s.Status4k = status
	} else {
		s.Status = status
	}
}

// MediaRequest is a user's request for one media row on one quality tier.
// The reconciliation engine only ever advances it (auto-approval, completion),
// never deletes it.
type MediaRequest struct {
	ID          uint64 `boltholdKey:"ID"`
	MediaID     uint64 `boltholdIndex:"MediaID"`
	Is4k        bool
	Status      RequestStatus
	Seasons     []int // requested season numbers, empty for movies/music
	RequestedBy uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
