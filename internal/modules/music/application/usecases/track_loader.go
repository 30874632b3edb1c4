package usecases

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// LoadInput contains the input for the Load use case.
type LoadInput struct {
	Query       string
	RequesterID snowflake.ID
}

// TrackLoader resolves user input into playable tracks. It runs before
// any room lock is taken; by the time the orchestrator sees a track,
// resolution is already done.
type TrackLoader struct {
	resolver ports.AudioResolver
}

// NewTrackLoader creates a new TrackLoader.
func NewTrackLoader(resolver ports.AudioResolver) *TrackLoader {
	return &TrackLoader{resolver: resolver}
}

// Load resolves the query into a track and stamps the requester.
func (l *TrackLoader) Load(ctx context.Context, input LoadInput) (*domain.Track, error) {
	track, err := l.resolver.Resolve(ctx, input.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolutionFailed, err)
	}
	track.RequesterID = input.RequesterID
	return track, nil
}
