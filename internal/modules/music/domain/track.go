package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// StreamRef is an opaque reference to a playable audio stream.
// For the native backend it is a direct media URL; for Lavalink it is
// the encoded track blob. Stream references may expire and must not be
// reused across more than one playback attempt without re-resolving.
type StreamRef string

// Track represents a resolved, playable audio track.
// Immutable once created.
type Track struct {
	StreamRef   StreamRef
	Title       string
	URI         string // canonical source URL, for display
	Duration    time.Duration
	RequesterID snowflake.ID
	EnqueuedAt  time.Time
}

// NewTrack creates a new Track with the given parameters.
func NewTrack(ref StreamRef, title, uri string, duration time.Duration, requesterID snowflake.ID) *Track {
	return &Track{
		StreamRef:   ref,
		Title:       title,
		URI:         uri,
		Duration:    duration,
		RequesterID: requesterID,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// IsValid returns true if the track has the minimum required fields.
func (t *Track) IsValid() bool {
	return t.StreamRef != "" && t.Title != ""
}

// Candidate is a search result that has not been fully resolved yet.
// QueryRef is fed back into the resolver when the candidate is picked;
// full resolution is deferred because a candidate may never be chosen.
type Candidate struct {
	QueryRef string
	Title    string
}
