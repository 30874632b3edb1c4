package domain

// RoomQueue is the ordered queue of resolved tracks for a single room.
// Insertion order is play order. The currently playing track lives in
// RoomState.current, not in the queue; callers pop the head into the
// current slot when playback advances.
//
// RoomQueue is not safe for concurrent use; RoomState's lock guards it.
type RoomQueue struct {
	pending []*Track
}

// Len returns the number of pending tracks.
func (q *RoomQueue) Len() int {
	return len(q.pending)
}

// IsEmpty returns true if no tracks are pending.
func (q *RoomQueue) IsEmpty() bool {
	return len(q.pending) == 0
}

// Enqueue appends a track and returns its 1-indexed queue position.
func (q *RoomQueue) Enqueue(t *Track) int {
	q.pending = append(q.pending, t)
	return len(q.pending)
}

// Head returns the next track to play without removing it, or nil.
func (q *RoomQueue) Head() *Track {
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

// PopHead removes and returns the next track to play, or nil.
func (q *RoomQueue) PopHead() *Track {
	if len(q.pending) == 0 {
		return nil
	}
	head := q.pending[0]
	q.pending = q.pending[1:]
	return head
}

// ContainsRef reports whether a pending track has the given stream
// reference. Used for duplicate suppression at selection time.
func (q *RoomQueue) ContainsRef(ref StreamRef) bool {
	for _, t := range q.pending {
		if t.StreamRef == ref {
			return true
		}
	}
	return false
}

// Remove removes exactly the given track (identity comparison) from the
// pending queue. Returns false if the track is not queued.
func (q *RoomQueue) Remove(track *Track) bool {
	for i, t := range q.pending {
		if t == track {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the pending tracks in play order.
func (q *RoomQueue) List() []*Track {
	result := make([]*Track, len(q.pending))
	copy(result, q.pending)
	return result
}

// Clear removes all pending tracks and returns how many were dropped.
func (q *RoomQueue) Clear() int {
	count := len(q.pending)
	q.pending = nil
	return count
}
