package ports

import "github.com/sanozu/groovebot/internal/modules/music/domain"

// EventPublisher publishes playback lifecycle events asynchronously.
// Publishing must never block queue operations.
type EventPublisher interface {
	PublishTrackEnqueued(event domain.TrackEnqueuedEvent)
	PublishPlaybackStarted(event domain.PlaybackStartedEvent)
	PublishPlaybackFailed(event domain.PlaybackFailedEvent)
	PublishQueueDrained(event domain.QueueDrainedEvent)
}
