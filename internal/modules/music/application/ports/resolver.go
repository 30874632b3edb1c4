package ports

import (
	"context"

	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// AudioResolver converts user input into playable tracks.
//
// Resolution is not guaranteed idempotent: stream references may expire
// or differ between calls, so callers must not reuse a StreamRef across
// more than one playback attempt without re-resolving.
type AudioResolver interface {
	// Resolve turns a direct locator or free text into a playable
	// track. Free text is tried as a direct locator first and, on
	// failure, treated as a search query whose first hit is used.
	Resolve(ctx context.Context, input string) (*domain.Track, error)

	// Search returns up to limit candidates for the query, in result
	// order. Candidates are not fully resolved; feed Candidate.QueryRef
	// back into Resolve when one is picked.
	Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}
