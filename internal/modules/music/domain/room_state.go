package domain

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// RoomState holds the playback state for a single room: the pending
// queue, the currently playing track, and the channels the room is
// bound to.
//
// All mutating access goes through the room lock. The command path,
// the reaction paths, and the playback completion callback all touch
// the same state concurrently; Lock/Unlock serializes them per room
// while leaving unrelated rooms fully parallel.
type RoomState struct {
	mu sync.Mutex

	roomID         snowflake.ID
	voiceChannelID snowflake.ID
	textChannelID  snowflake.ID

	Queue   RoomQueue
	current *Track

	// playSeq identifies the live play attempt. Completion callbacks
	// carry the sequence they were registered under; anything else is
	// stale and ignored, which is what makes a skip racing a natural
	// completion safe.
	playSeq uint64
}

// NewRoomState creates the state for a room. Created lazily on first
// use and logically reset on stop or queue exhaustion.
func NewRoomState(roomID snowflake.ID) *RoomState {
	return &RoomState{roomID: roomID}
}

// Lock acquires the room's serialization lock.
func (s *RoomState) Lock() { s.mu.Lock() }

// Unlock releases the room's serialization lock.
func (s *RoomState) Unlock() { s.mu.Unlock() }

// RoomID returns the room ID. Never modified after creation.
func (s *RoomState) RoomID() snowflake.ID {
	return s.roomID
}

// Current returns the currently playing track, or nil when idle.
func (s *RoomState) Current() *Track {
	return s.current
}

// SetCurrent sets the currently playing track.
func (s *RoomState) SetCurrent(t *Track) {
	s.current = t
}

// PlaySeq returns the sequence number of the live play attempt.
func (s *RoomState) PlaySeq() uint64 {
	return s.playSeq
}

// NextPlaySeq starts a new play attempt and returns its sequence.
// Any completion registered under an earlier sequence becomes stale.
func (s *RoomState) NextPlaySeq() uint64 {
	s.playSeq++
	return s.playSeq
}

// VoiceChannelID returns the voice channel the room's session is bound to.
func (s *RoomState) VoiceChannelID() snowflake.ID {
	return s.voiceChannelID
}

// SetVoiceChannelID updates the bound voice channel.
func (s *RoomState) SetVoiceChannelID(id snowflake.ID) {
	s.voiceChannelID = id
}

// TextChannelID returns the text channel used for notifications.
func (s *RoomState) TextChannelID() snowflake.ID {
	return s.textChannelID
}

// SetTextChannelID updates the notification channel.
func (s *RoomState) SetTextChannelID(id snowflake.ID) {
	s.textChannelID = id
}

// RoomStateRepository stores per-room playback state.
type RoomStateRepository interface {
	// Get returns the state for the room, or nil if none exists.
	Get(roomID snowflake.ID) *RoomState

	// GetOrCreate returns the state for the room, creating it lazily.
	GetOrCreate(roomID snowflake.ID) *RoomState

	// Delete removes the state for the room.
	Delete(roomID snowflake.ID)
}
