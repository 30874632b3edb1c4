package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// DefaultSessionTTL bounds how long a selection session stays reactive
// after it was rendered.
const DefaultSessionTTL = 15 * time.Minute

// Selection drives the emoji-reaction based track selection flow: it
// renders search candidates, resolves and enqueues the candidate a
// reaction picks, and reverses the enqueue when the reaction is
// removed.
//
// Handlers for the same session are serialized by the session lock;
// they tolerate running concurrently with unrelated room operations
// because every queue mutation goes through the Orchestrator's
// room-scoped API.
type Selection struct {
	sessions domain.SelectionRepository
	resolver ports.AudioResolver
	orch     *Orchestrator
	ttl      time.Duration
}

// NewSelection creates a new Selection service. A non-positive ttl
// falls back to DefaultSessionTTL.
func NewSelection(
	sessions domain.SelectionRepository,
	resolver ports.AudioResolver,
	orch *Orchestrator,
	ttl time.Duration,
) *Selection {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Selection{
		sessions: sessions,
		resolver: resolver,
		orch:     orch,
		ttl:      ttl,
	}
}

// Render searches for candidates for the query, capped at the marker
// count. Returns ErrNoResults when the search comes back empty.
func (s *Selection) Render(ctx context.Context, query string) ([]domain.Candidate, error) {
	candidates, err := s.resolver.Search(ctx, query, len(ports.MarkerEmojis))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolutionFailed, err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	if len(candidates) > len(ports.MarkerEmojis) {
		candidates = candidates[:len(ports.MarkerEmojis)]
	}
	return candidates, nil
}

// Register records the session behind a rendered search-results
// message so subsequent reactions on it can be matched up.
func (s *Selection) Register(
	messageID, roomID, textChannelID, requesterID snowflake.ID,
	candidates []domain.Candidate,
) {
	s.sessions.Save(domain.NewSelectionSession(
		messageID, roomID, textChannelID, requesterID, candidates,
	))
}

// OnSelect handles a marker reaction added to a search-results
// message. Reactions on unknown messages, non-marker emoji, and
// markers beyond the rendered candidate count are silently ignored —
// they are not user requests. The chosen candidate is fully resolved,
// checked for duplicates against the room's pending queue, enqueued,
// and bound to the emoji.
func (s *Selection) OnSelect(
	ctx context.Context,
	messageID snowflake.ID,
	emoji string,
) (*domain.Track, error) {
	index := ports.MarkerIndex(emoji)
	if index < 0 {
		return nil, nil
	}
	sess := s.sessions.Get(messageID)
	if sess == nil {
		return nil, nil
	}

	sess.Lock()
	defer sess.Unlock()

	candidate := sess.Candidate(index)
	if candidate == nil {
		return nil, nil
	}

	// Long-latency resolution happens under the session lock only;
	// the room lock is not held, so room playback is never stalled.
	track, err := s.resolver.Resolve(ctx, candidate.QueryRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolutionFailed, err)
	}
	track.RequesterID = sess.RequesterID

	if _, err := s.orch.EnqueueUnique(ctx, sess.RoomID, track); err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			return nil, ErrAlreadyQueued
		}
		return nil, err
	}

	// Binding and enqueue are one logical action: both happened, or
	// neither did.
	sess.Bind(emoji, track)

	slog.Info("enqueued track via selection",
		"room", sess.RoomID,
		"track", track.Title,
		"marker", emoji,
	)
	return track, nil
}

// OnDeselect handles a marker reaction removed from a search-results
// message. A missing binding is a no-op. Removing the binding and
// removing the track from the queue are a single logical action under
// the session lock; a currently playing track refuses with
// ErrCannotRemoveActive and stays both queued and bound.
func (s *Selection) OnDeselect(
	ctx context.Context,
	messageID snowflake.ID,
	emoji string,
) (*domain.Track, error) {
	if ports.MarkerIndex(emoji) < 0 {
		return nil, nil
	}
	sess := s.sessions.Get(messageID)
	if sess == nil {
		return nil, nil
	}

	sess.Lock()
	defer sess.Unlock()

	track := sess.Binding(emoji)
	if track == nil {
		return nil, nil
	}

	if err := s.orch.RemoveQueued(sess.RoomID, track); err != nil {
		return nil, err
	}
	sess.Unbind(emoji)

	slog.Info("removed track via deselection",
		"room", sess.RoomID,
		"track", track.Title,
		"marker", emoji,
	)
	return track, nil
}

// DropRoom discards every selection session belonging to the room.
// Called when the room's playback stops or its queue drains; the
// rendered messages can no longer affect the queue after that.
func (s *Selection) DropRoom(roomID snowflake.ID) {
	if n := s.sessions.DeleteByRoom(roomID); n > 0 {
		slog.Debug("dropped selection sessions", "room", roomID, "count", n)
	}
}

// PruneExpired discards sessions older than the TTL and returns how
// many were removed.
func (s *Selection) PruneExpired(now time.Time) int {
	return s.sessions.DeleteOlderThan(now.Add(-s.ttl))
}

// StartJanitor launches a background goroutine that periodically
// prunes expired sessions until the context is cancelled.
func (s *Selection) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.PruneExpired(now); n > 0 {
					slog.Debug("pruned expired selection sessions", "count", n)
				}
			}
		}
	}()
}
