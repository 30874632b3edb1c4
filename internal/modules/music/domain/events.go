package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// TrackEnqueuedEvent is published when a track is added to a room's queue.
type TrackEnqueuedEvent struct {
	RoomID   snowflake.ID
	Track    *Track
	Position int  // 1-indexed position in the pending queue
	WasIdle  bool // true if nothing was playing when the track was enqueued
}

// PlaybackStartedEvent is published when a track starts playing.
type PlaybackStartedEvent struct {
	RoomID        snowflake.ID
	Track         *Track
	TextChannelID snowflake.ID
}

// PlaybackFailedEvent is published when a play attempt ends with an
// error. The failure is track-level: the queue advances past it.
type PlaybackFailedEvent struct {
	RoomID        snowflake.ID
	Track         *Track
	TextChannelID snowflake.ID
	Err           error
}

// QueueDrainedEvent is published when a room's queue is exhausted or
// stopped and the voice session has been disconnected.
type QueueDrainedEvent struct {
	RoomID        snowflake.ID
	TextChannelID snowflake.ID
}
