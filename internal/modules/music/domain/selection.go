package domain

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// SelectionSession is the live state behind one rendered set of search
// candidates awaiting emoji-based choice. Bindings record which
// concrete resolved Track a given emoji actually enqueued; resolution
// is re-run per selection and may legitimately differ between calls,
// so the binding is the only reliable link back to the queued entry.
//
// Add and remove for the same session are not commutative; the session
// lock serializes them so an add immediately followed by a remove can
// never leave a dangling binding or double-remove.
type SelectionSession struct {
	mu sync.Mutex

	MessageID     snowflake.ID
	RoomID        snowflake.ID
	TextChannelID snowflake.ID
	RequesterID   snowflake.ID
	Candidates    []Candidate
	CreatedAt     time.Time

	bindings map[string]*Track
}

// NewSelectionSession creates the session for a rendered search-results message.
func NewSelectionSession(
	messageID, roomID, textChannelID, requesterID snowflake.ID,
	candidates []Candidate,
) *SelectionSession {
	return &SelectionSession{
		MessageID:     messageID,
		RoomID:        roomID,
		TextChannelID: textChannelID,
		RequesterID:   requesterID,
		Candidates:    candidates,
		CreatedAt:     time.Now().UTC(),
		bindings:      make(map[string]*Track),
	}
}

// Lock acquires the per-session serialization lock.
func (s *SelectionSession) Lock() { s.mu.Lock() }

// Unlock releases the per-session serialization lock.
func (s *SelectionSession) Unlock() { s.mu.Unlock() }

// Candidate returns the candidate at the given index, or nil if out of range.
func (s *SelectionSession) Candidate(index int) *Candidate {
	if index < 0 || index >= len(s.Candidates) {
		return nil
	}
	return &s.Candidates[index]
}

// Bind records that the given emoji enqueued the given track.
func (s *SelectionSession) Bind(emoji string, track *Track) {
	s.bindings[emoji] = track
}

// Binding returns the track enqueued via the given emoji, or nil.
func (s *SelectionSession) Binding(emoji string) *Track {
	return s.bindings[emoji]
}

// Unbind removes the emoji binding.
func (s *SelectionSession) Unbind(emoji string) {
	delete(s.bindings, emoji)
}

// SelectionRepository stores selection sessions keyed by message ID.
type SelectionRepository interface {
	// Get returns the session for the message, or nil if none exists.
	Get(messageID snowflake.ID) *SelectionSession

	// Save stores the session.
	Save(session *SelectionSession)

	// Delete removes the session for the message.
	Delete(messageID snowflake.ID)

	// DeleteByRoom removes all sessions belonging to the room.
	DeleteByRoom(roomID snowflake.ID) int

	// DeleteOlderThan removes sessions created before the cutoff.
	DeleteOlderThan(cutoff time.Time) int
}
