package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// QueueItem is one entry of a queue listing.
type QueueItem struct {
	Position int // 1-indexed
	Title    string
}

// Orchestrator owns all per-room playback state. It serializes every
// queue mutation and the advance decision through the room's lock,
// advances playback on completion callbacks, and implements skip and
// stop. Operations on different rooms proceed fully in parallel.
//
// Resolution never happens here: callers resolve first and hand in a
// finished Track, so a slow resolver can never stall a room's queue.
type Orchestrator struct {
	repo       domain.RoomStateRepository
	voice      ports.VoiceSessionProvider
	voiceState ports.VoiceStateProvider
	publisher  ports.EventPublisher
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	repo domain.RoomStateRepository,
	voice ports.VoiceSessionProvider,
	voiceState ports.VoiceStateProvider,
	publisher ports.EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		voice:      voice,
		voiceState: voiceState,
		publisher:  publisher,
	}
}

// EnsureConnected verifies the user is in a voice channel and connects
// (or moves) the room's voice session there. Returns ErrNotInVoice if
// the user is not in any voice channel.
func (o *Orchestrator) EnsureConnected(
	ctx context.Context,
	roomID, userID, textChannelID snowflake.ID,
) error {
	channelID, err := o.voiceState.UserVoiceChannel(roomID, userID)
	if err != nil {
		return fmt.Errorf("look up user voice state: %w", err)
	}
	if channelID == 0 {
		return ErrNotInVoice
	}
	return o.Connect(ctx, roomID, channelID, textChannelID)
}

// Connect binds the room to the given channels and connects the voice
// session, moving it if it is already connected elsewhere.
func (o *Orchestrator) Connect(
	ctx context.Context,
	roomID, voiceChannelID, textChannelID snowflake.ID,
) error {
	state := o.repo.GetOrCreate(roomID)
	state.Lock()
	state.SetVoiceChannelID(voiceChannelID)
	state.SetTextChannelID(textChannelID)
	state.Unlock()

	// Network call outside the room lock.
	if err := o.voice.Session(roomID).Connect(ctx, voiceChannelID); err != nil {
		return fmt.Errorf("connect voice session: %w", err)
	}
	return nil
}

// Enqueue appends the track to the room's queue and returns its
// 1-indexed position. If nothing is playing, playback starts
// immediately with the head of the queue.
func (o *Orchestrator) Enqueue(
	ctx context.Context,
	roomID snowflake.ID,
	track *domain.Track,
) (int, error) {
	return o.enqueue(ctx, roomID, track, false)
}

// EnqueueUnique behaves like Enqueue but refuses with ErrAlreadyQueued
// when a pending track already carries the same stream reference. The
// currently playing track is deliberately not part of the check, so
// re-enqueueing the active track is allowed.
func (o *Orchestrator) EnqueueUnique(
	ctx context.Context,
	roomID snowflake.ID,
	track *domain.Track,
) (int, error) {
	return o.enqueue(ctx, roomID, track, true)
}

func (o *Orchestrator) enqueue(
	ctx context.Context,
	roomID snowflake.ID,
	track *domain.Track,
	unique bool,
) (int, error) {
	state := o.repo.GetOrCreate(roomID)

	state.Lock()
	if unique && state.Queue.ContainsRef(track.StreamRef) {
		state.Unlock()
		return 0, ErrAlreadyQueued
	}
	wasIdle := state.Current() == nil
	position := state.Queue.Enqueue(track)
	if wasIdle {
		o.advanceLocked(ctx, state)
	}
	state.Unlock()

	o.publisher.PublishTrackEnqueued(domain.TrackEnqueuedEvent{
		RoomID:   roomID,
		Track:    track,
		Position: position,
		WasIdle:  wasIdle,
	})

	return position, nil
}

// advanceLocked pops the head of the queue into the current slot and
// starts playing it, registering the completion callback for the new
// play attempt. When the queue is empty the voice session is
// disconnected and the room is marked drained. A track whose playback
// cannot even start is logged and skipped over, never stalling the
// queue.
//
// Must be called with the room lock held.
func (o *Orchestrator) advanceLocked(ctx context.Context, state *domain.RoomState) {
	roomID := state.RoomID()
	sess := o.voice.Session(roomID)

	for {
		next := state.Queue.PopHead()
		if next == nil {
			state.SetCurrent(nil)
			// Invalidate any completion still in flight.
			state.NextPlaySeq()
			if err := sess.Disconnect(ctx); err != nil {
				slog.Warn("failed to disconnect voice session", "room", roomID, "error", err)
			}
			o.publisher.PublishQueueDrained(domain.QueueDrainedEvent{
				RoomID:        roomID,
				TextChannelID: state.TextChannelID(),
			})
			return
		}

		seq := state.NextPlaySeq()
		err := sess.Play(ctx, next.StreamRef, func(playErr error) {
			o.onPlaybackComplete(roomID, seq, playErr)
		})
		if err != nil {
			slog.Error("failed to start playback, skipping track",
				"room", roomID,
				"track", next.Title,
				"error", err,
			)
			o.publisher.PublishPlaybackFailed(domain.PlaybackFailedEvent{
				RoomID:        roomID,
				Track:         next,
				TextChannelID: state.TextChannelID(),
				Err:           err,
			})
			continue
		}

		state.SetCurrent(next)
		o.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			RoomID:        roomID,
			Track:         next,
			TextChannelID: state.TextChannelID(),
		})
		return
	}
}

// onPlaybackComplete is invoked by the voice session when a play
// attempt ends. It runs under the room lock; completions carrying a
// stale sequence are dropped, which makes the handler idempotent when
// a skip races a natural completion.
func (o *Orchestrator) onPlaybackComplete(roomID snowflake.ID, seq uint64, playErr error) {
	state := o.repo.Get(roomID)
	if state == nil {
		return
	}

	state.Lock()
	defer state.Unlock()

	if seq != state.PlaySeq() {
		slog.Debug("ignoring stale playback completion", "room", roomID, "seq", seq)
		return
	}

	current := state.Current()
	if current == nil {
		return
	}

	if playErr != nil {
		// Track-level failure: log, tell the room, keep going.
		slog.Error("playback failed", "room", roomID, "track", current.Title, "error", playErr)
		o.publisher.PublishPlaybackFailed(domain.PlaybackFailedEvent{
			RoomID:        roomID,
			Track:         current,
			TextChannelID: state.TextChannelID(),
			Err:           playErr,
		})
	}

	state.SetCurrent(nil)
	o.advanceLocked(context.Background(), state)
}

// Skip stops the current track; the completion callback then advances
// the queue. Returns the skipped track, or ErrNothingPlaying when the
// room is idle.
func (o *Orchestrator) Skip(ctx context.Context, roomID snowflake.ID) (*domain.Track, error) {
	state := o.repo.Get(roomID)
	if state == nil {
		return nil, ErrNothingPlaying
	}

	state.Lock()
	current := state.Current()
	state.Unlock()

	if current == nil {
		return nil, ErrNothingPlaying
	}

	if err := o.voice.Session(roomID).Stop(ctx); err != nil {
		return nil, fmt.Errorf("stop playback: %w", err)
	}
	return current, nil
}

// Stop clears the pending queue and the current track and disconnects
// the voice session. Idempotent: stopping an idle room does nothing.
func (o *Orchestrator) Stop(ctx context.Context, roomID snowflake.ID) error {
	state := o.repo.Get(roomID)
	if state == nil {
		return nil
	}

	state.Lock()
	cleared := state.Queue.Clear()
	hadCurrent := state.Current() != nil
	state.SetCurrent(nil)
	// The in-flight completion for the stopped track becomes stale.
	state.NextPlaySeq()
	textChannelID := state.TextChannelID()
	state.Unlock()

	sess := o.voice.Session(roomID)
	if err := sess.Stop(ctx); err != nil {
		slog.Warn("failed to stop voice session", "room", roomID, "error", err)
	}
	if err := sess.Disconnect(ctx); err != nil {
		slog.Warn("failed to disconnect voice session", "room", roomID, "error", err)
	}

	if cleared > 0 || hadCurrent {
		slog.Info("stopped playback", "room", roomID, "cleared", cleared)
	}
	o.publisher.PublishQueueDrained(domain.QueueDrainedEvent{
		RoomID:        roomID,
		TextChannelID: textChannelID,
	})
	return nil
}

// ListQueue returns a snapshot of the pending queue in play order,
// 1-indexed. The current track is not part of the listing; callers
// render it separately if desired.
func (o *Orchestrator) ListQueue(roomID snowflake.ID) []QueueItem {
	state := o.repo.Get(roomID)
	if state == nil {
		return nil
	}

	state.Lock()
	tracks := state.Queue.List()
	state.Unlock()

	items := make([]QueueItem, len(tracks))
	for i, t := range tracks {
		items[i] = QueueItem{Position: i + 1, Title: t.Title}
	}
	return items
}

// NowPlaying returns the room's current track, or nil when idle.
func (o *Orchestrator) NowPlaying(roomID snowflake.ID) *domain.Track {
	state := o.repo.Get(roomID)
	if state == nil {
		return nil
	}

	state.Lock()
	defer state.Unlock()
	return state.Current()
}

// SetVolume applies a [0,1] volume fraction to the currently playing
// source. Returns ErrUnsupported when no source is active or the
// active source has no volume control.
func (o *Orchestrator) SetVolume(roomID snowflake.ID, fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("volume fraction %v out of range [0,1]", fraction)
	}

	state := o.repo.Get(roomID)
	if state == nil {
		return ErrUnsupported
	}

	state.Lock()
	current := state.Current()
	state.Unlock()

	if current == nil {
		return ErrUnsupported
	}

	if err := o.voice.Session(roomID).SetVolume(fraction); err != nil {
		if errors.Is(err, ports.ErrVolumeUnsupported) {
			return ErrUnsupported
		}
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// RemoveQueued removes exactly the given track from the room's pending
// queue. Returns ErrCannotRemoveActive if the track is currently
// playing; removing a track that is no longer queued is a no-op.
func (o *Orchestrator) RemoveQueued(roomID snowflake.ID, track *domain.Track) error {
	state := o.repo.Get(roomID)
	if state == nil {
		return nil
	}

	state.Lock()
	defer state.Unlock()

	if state.Current() == track {
		return ErrCannotRemoveActive
	}
	state.Queue.Remove(track)
	return nil
}
