package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// MemoryRoomRepository is an in-memory implementation of RoomStateRepository.
type MemoryRoomRepository struct {
	mu     sync.RWMutex
	states map[snowflake.ID]*domain.RoomState
}

// NewMemoryRoomRepository creates a new MemoryRoomRepository.
func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{
		states: make(map[snowflake.ID]*domain.RoomState),
	}
}

// Get returns the state for the room, or nil if none exists.
func (r *MemoryRoomRepository) Get(roomID snowflake.ID) *domain.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.states[roomID]
}

// GetOrCreate returns the state for the room, creating it lazily.
func (r *MemoryRoomRepository) GetOrCreate(roomID snowflake.ID) *domain.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[roomID]
	if !ok {
		state = domain.NewRoomState(roomID)
		r.states[roomID] = state
	}
	return state
}

// Delete removes the state for the room.
func (r *MemoryRoomRepository) Delete(roomID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, roomID)
}

// Count returns the number of room states (for testing/monitoring).
func (r *MemoryRoomRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.states)
}

// Ensure MemoryRoomRepository implements RoomStateRepository.
var _ domain.RoomStateRepository = (*MemoryRoomRepository)(nil)
