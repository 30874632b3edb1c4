package events

import (
	"log/slog"
	"sync"

	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time check that Bus implements ports.EventPublisher.
var _ ports.EventPublisher = (*Bus)(nil)

// Bus is a channel-based event bus for async event handling. Publishing
// never blocks: if a buffer is full the event is dropped with a warning,
// so a slow consumer can never stall a room's queue operations.
type Bus struct {
	trackEnqueued   chan domain.TrackEnqueuedEvent
	playbackStarted chan domain.PlaybackStartedEvent
	playbackFailed  chan domain.PlaybackFailedEvent
	queueDrained    chan domain.QueueDrainedEvent

	closed bool
	mu     sync.RWMutex
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		trackEnqueued:   make(chan domain.TrackEnqueuedEvent, bufferSize),
		playbackStarted: make(chan domain.PlaybackStartedEvent, bufferSize),
		playbackFailed:  make(chan domain.PlaybackFailedEvent, bufferSize),
		queueDrained:    make(chan domain.QueueDrainedEvent, bufferSize),
	}
}

// PublishTrackEnqueued publishes a TrackEnqueuedEvent.
func (b *Bus) PublishTrackEnqueued(event domain.TrackEnqueuedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackEnqueued")
		return
	}

	select {
	case b.trackEnqueued <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "TrackEnqueued")
	}
}

// PublishPlaybackStarted publishes a PlaybackStartedEvent.
func (b *Bus) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlaybackStarted")
		return
	}

	select {
	case b.playbackStarted <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlaybackStarted")
	}
}

// PublishPlaybackFailed publishes a PlaybackFailedEvent.
func (b *Bus) PublishPlaybackFailed(event domain.PlaybackFailedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlaybackFailed")
		return
	}

	select {
	case b.playbackFailed <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlaybackFailed")
	}
}

// PublishQueueDrained publishes a QueueDrainedEvent.
func (b *Bus) PublishQueueDrained(event domain.QueueDrainedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "QueueDrained")
		return
	}

	select {
	case b.queueDrained <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "QueueDrained")
	}
}

// TrackEnqueued returns the channel for TrackEnqueuedEvent.
func (b *Bus) TrackEnqueued() <-chan domain.TrackEnqueuedEvent {
	return b.trackEnqueued
}

// PlaybackStarted returns the channel for PlaybackStartedEvent.
func (b *Bus) PlaybackStarted() <-chan domain.PlaybackStartedEvent {
	return b.playbackStarted
}

// PlaybackFailed returns the channel for PlaybackFailedEvent.
func (b *Bus) PlaybackFailed() <-chan domain.PlaybackFailedEvent {
	return b.playbackFailed
}

// QueueDrained returns the channel for QueueDrainedEvent.
func (b *Bus) QueueDrained() <-chan domain.QueueDrainedEvent {
	return b.queueDrained
}

// Close closes all event channels. After Close, publishing no longer
// sends events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.trackEnqueued)
	close(b.playbackStarted)
	close(b.playbackFailed)
	close(b.queueDrained)

	slog.Debug("event bus closed")
}
