package infrastructure

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// MemorySelectionRepository is an in-memory implementation of
// SelectionRepository, keyed by the rendered message's ID.
type MemorySelectionRepository struct {
	mu       sync.RWMutex
	sessions map[snowflake.ID]*domain.SelectionSession
}

// NewMemorySelectionRepository creates a new MemorySelectionRepository.
func NewMemorySelectionRepository() *MemorySelectionRepository {
	return &MemorySelectionRepository{
		sessions: make(map[snowflake.ID]*domain.SelectionSession),
	}
}

// Get returns the session for the message, or nil if none exists.
func (r *MemorySelectionRepository) Get(messageID snowflake.ID) *domain.SelectionSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sessions[messageID]
}

// Save stores the session.
func (r *MemorySelectionRepository) Save(session *domain.SelectionSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.MessageID] = session
}

// Delete removes the session for the message.
func (r *MemorySelectionRepository) Delete(messageID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, messageID)
}

// DeleteByRoom removes all sessions belonging to the room.
func (r *MemorySelectionRepository) DeleteByRoom(roomID snowflake.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, sess := range r.sessions {
		if sess.RoomID == roomID {
			delete(r.sessions, id)
			count++
		}
	}
	return count
}

// DeleteOlderThan removes sessions created before the cutoff.
func (r *MemorySelectionRepository) DeleteOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, sess := range r.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count
}

// Count returns the number of live sessions (for testing/monitoring).
func (r *MemorySelectionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Ensure MemorySelectionRepository implements SelectionRepository.
var _ domain.SelectionRepository = (*MemorySelectionRepository)(nil)
