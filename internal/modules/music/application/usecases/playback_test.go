package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

func newTestOrchestrator() (*Orchestrator, *mockRoomRepo, *fakeVoiceProvider, *fakeVoiceState, *mockPublisher) {
	repo := newMockRoomRepo()
	voice := newFakeVoiceProvider()
	voiceState := &fakeVoiceState{channels: make(map[snowflake.ID]snowflake.ID)}
	publisher := &mockPublisher{}
	orch := NewOrchestrator(repo, voice, voiceState, publisher)
	return orch, repo, voice, voiceState, publisher
}

func TestOrchestrator_EnqueueIdleRoomStartsPlayback(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, publisher := newTestOrchestrator()

	track := mockTrack("a")
	position, err := orch.Enqueue(context.Background(), roomID, track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position != 1 {
		t.Errorf("expected position 1, got %d", position)
	}

	sess := voice.session(roomID)
	if sess.playCount() != 1 {
		t.Fatalf("expected 1 play, got %d", sess.playCount())
	}
	if sess.plays[0] != track.StreamRef {
		t.Errorf("expected play of %q, got %q", track.StreamRef, sess.plays[0])
	}
	if got := orch.NowPlaying(roomID); got != track {
		t.Errorf("expected current track %v, got %v", track, got)
	}
	if publisher.startedCount() != 1 {
		t.Errorf("expected 1 playback-started event, got %d", publisher.startedCount())
	}
}

func TestOrchestrator_EnqueueWhilePlayingAppends(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	first := mockTrack("a")
	second := mockTrack("b")

	if _, err := orch.Enqueue(ctx, roomID, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	position, err := orch.Enqueue(ctx, roomID, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position != 1 {
		t.Errorf("expected position 1 (first pending entry), got %d", position)
	}

	sess := voice.session(roomID)
	if sess.playCount() != 1 {
		t.Errorf("expected only the first track to play, got %d plays", sess.playCount())
	}
	if got := orch.NowPlaying(roomID); got != first {
		t.Errorf("expected current track to stay %v, got %v", first, got)
	}

	items := orch.ListQueue(roomID)
	if len(items) != 1 || items[0].Title != second.Title || items[0].Position != 1 {
		t.Errorf("unexpected queue listing: %+v", items)
	}
}

func TestOrchestrator_CompletionAdvancesInOrder(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	a := mockTrack("a")
	b := mockTrack("b")
	c := mockTrack("c")
	for _, tr := range []*domain.Track{a, b, c} {
		if _, err := orch.Enqueue(ctx, roomID, tr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sess := voice.session(roomID)
	sess.complete(0, nil)
	sess.complete(1, nil)

	if sess.playCount() != 3 {
		t.Fatalf("expected 3 plays, got %d", sess.playCount())
	}
	want := []domain.StreamRef{a.StreamRef, b.StreamRef, c.StreamRef}
	for i, ref := range want {
		if sess.plays[i] != ref {
			t.Errorf("play %d: expected %q, got %q", i, ref, sess.plays[i])
		}
	}
	if got := orch.NowPlaying(roomID); got != c {
		t.Errorf("expected current track %v, got %v", c, got)
	}
}

func TestOrchestrator_DrainDisconnectsAndPublishes(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, publisher := newTestOrchestrator()
	ctx := context.Background()

	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess := voice.session(roomID)
	sess.complete(0, nil)

	if got := orch.NowPlaying(roomID); got != nil {
		t.Errorf("expected idle room, got current %v", got)
	}
	if sess.disconnects != 1 {
		t.Errorf("expected 1 disconnect, got %d", sess.disconnects)
	}
	if publisher.drainedCount() != 1 {
		t.Errorf("expected 1 queue-drained event, got %d", publisher.drainedCount())
	}
}

func TestOrchestrator_EnqueueAfterDrainStartsFresh(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := voice.session(roomID)
	sess.complete(0, nil)

	next := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.playCount() != 2 {
		t.Fatalf("expected playback to restart, got %d plays", sess.playCount())
	}
	if got := orch.NowPlaying(roomID); got != next {
		t.Errorf("expected current track %v, got %v", next, got)
	}
}

func TestOrchestrator_PlayStartFailureSkipsTrack(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, publisher := newTestOrchestrator()
	ctx := context.Background()

	sess := voice.session(roomID)
	sess.playErr = errors.New("cannot start")

	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("enqueue itself must not fail: %v", err)
	}

	// The track could not start, so the queue drained immediately.
	if publisher.failedCount() != 1 {
		t.Errorf("expected 1 playback-failed event, got %d", publisher.failedCount())
	}
	if publisher.drainedCount() != 1 {
		t.Errorf("expected 1 queue-drained event, got %d", publisher.drainedCount())
	}
	if got := orch.NowPlaying(roomID); got != nil {
		t.Errorf("expected idle room, got %v", got)
	}
}

func TestOrchestrator_MidPlaybackFailureAdvances(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, publisher := newTestOrchestrator()
	ctx := context.Background()

	b := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess := voice.session(roomID)
	sess.complete(0, errors.New("stream died"))

	if publisher.failedCount() != 1 {
		t.Errorf("expected 1 playback-failed event, got %d", publisher.failedCount())
	}
	if got := orch.NowPlaying(roomID); got != b {
		t.Errorf("expected next track to play, got %v", got)
	}
}

func TestOrchestrator_SkipStopsCurrentAndAdvances(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	a := mockTrack("a")
	b := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	skipped, err := orch.Skip(ctx, roomID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != a {
		t.Errorf("expected skipped track %v, got %v", a, skipped)
	}

	sess := voice.session(roomID)
	if sess.stopCalls != 1 {
		t.Fatalf("expected 1 stop call, got %d", sess.stopCalls)
	}

	// The backend reports the stop as a completion of the first play.
	sess.complete(0, nil)

	if got := orch.NowPlaying(roomID); got != b {
		t.Errorf("expected next track after skip, got %v", got)
	}
}

func TestOrchestrator_StaleCompletionIgnored(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	b := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess := voice.session(roomID)
	sess.complete(0, nil)
	// A duplicate completion for the finished attempt must not advance
	// the queue a second time.
	sess.complete(0, nil)

	if sess.playCount() != 2 {
		t.Errorf("expected 2 plays, got %d", sess.playCount())
	}
	if got := orch.NowPlaying(roomID); got != b {
		t.Errorf("expected current track %v, got %v", b, got)
	}
}

func TestOrchestrator_SkipNothingPlaying(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, _, _, _ := newTestOrchestrator()

	if _, err := orch.Skip(context.Background(), roomID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("expected ErrNothingPlaying, got %v", err)
	}
}

func TestOrchestrator_StopClearsEverything(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, publisher := newTestOrchestrator()
	ctx := context.Background()

	if _, err := orch.Enqueue(ctx, roomID, mockTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, mockTrack("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := orch.Stop(ctx, roomID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := orch.NowPlaying(roomID); got != nil {
		t.Errorf("expected idle room after stop, got %v", got)
	}
	if items := orch.ListQueue(roomID); len(items) != 0 {
		t.Errorf("expected empty queue after stop, got %+v", items)
	}

	sess := voice.session(roomID)
	if sess.stopCalls != 1 || sess.disconnects != 1 {
		t.Errorf("expected stop and disconnect, got %d stops and %d disconnects",
			sess.stopCalls, sess.disconnects)
	}
	if publisher.drainedCount() != 1 {
		t.Errorf("expected 1 queue-drained event, got %d", publisher.drainedCount())
	}

	// The stopped track's completion arrives late and must be ignored.
	sess.complete(0, nil)
	if sess.playCount() != 1 {
		t.Errorf("expected no new plays after stop, got %d", sess.playCount())
	}

	// A fresh enqueue starts playback again.
	next := mockTrack("c")
	if _, err := orch.Enqueue(ctx, roomID, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := orch.NowPlaying(roomID); got != next {
		t.Errorf("expected current track %v after restart, got %v", next, got)
	}
}

func TestOrchestrator_StopIdleRoomIsNoop(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator()

	if err := orch.Stop(context.Background(), snowflake.ID(1)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOrchestrator_EnqueueUnique(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	playing := mockTrack("a")
	pending := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, playing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, pending); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same ref as a pending track is refused.
	if _, err := orch.EnqueueUnique(ctx, roomID, mockTrack("b")); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("expected ErrAlreadyQueued, got %v", err)
	}

	// Same ref as the playing track is allowed: the check covers
	// pending entries only.
	if _, err := orch.EnqueueUnique(ctx, roomID, mockTrack("a")); err != nil {
		t.Errorf("expected re-enqueue of playing track to succeed, got %v", err)
	}

	if voice.session(roomID).playCount() != 1 {
		t.Errorf("expected no extra plays, got %d", voice.session(roomID).playCount())
	}
}

func TestOrchestrator_EnsureConnected(t *testing.T) {
	roomID := snowflake.ID(1)
	userID := snowflake.ID(2)
	channelID := snowflake.ID(3)
	textChannelID := snowflake.ID(4)

	tests := []struct {
		name       string
		setupState func(*fakeVoiceState)
		wantErr    error
	}{
		{
			name: "user in voice channel",
			setupState: func(v *fakeVoiceState) {
				v.channels[userID] = channelID
			},
		},
		{
			name:       "user not in voice channel",
			setupState: func(v *fakeVoiceState) {},
			wantErr:    ErrNotInVoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch, _, voice, voiceState, _ := newTestOrchestrator()
			tt.setupState(voiceState)

			err := orch.EnsureConnected(context.Background(), roomID, userID, textChannelID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sess := voice.session(roomID)
			if len(sess.connectedTo) != 1 || sess.connectedTo[0] != channelID {
				t.Errorf("expected connect to %v, got %v", channelID, sess.connectedTo)
			}
		})
	}
}

func TestOrchestrator_SetVolume(t *testing.T) {
	roomID := snowflake.ID(1)

	t.Run("no active playback", func(t *testing.T) {
		orch, _, _, _, _ := newTestOrchestrator()
		if err := orch.SetVolume(roomID, 0.5); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("backend has no volume control", func(t *testing.T) {
		orch, _, voice, _, _ := newTestOrchestrator()
		if _, err := orch.Enqueue(context.Background(), roomID, mockTrack("a")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		voice.session(roomID).volumeErr = ports.ErrVolumeUnsupported

		if err := orch.SetVolume(roomID, 0.5); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("applies volume", func(t *testing.T) {
		orch, _, voice, _, _ := newTestOrchestrator()
		if _, err := orch.Enqueue(context.Background(), roomID, mockTrack("a")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := orch.SetVolume(roomID, 0.25); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sess := voice.session(roomID)
		if !sess.volumeCalled || sess.volume != 0.25 {
			t.Errorf("expected volume 0.25 applied, got %v", sess.volume)
		}
	})

	t.Run("rejects out of range", func(t *testing.T) {
		orch, _, _, _, _ := newTestOrchestrator()
		if err := orch.SetVolume(roomID, 1.5); err == nil {
			t.Error("expected error for out-of-range volume")
		}
	})
}

func TestOrchestrator_RemoveQueued(t *testing.T) {
	roomID := snowflake.ID(1)
	orch, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	playing := mockTrack("a")
	queued := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomID, playing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomID, queued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := orch.RemoveQueued(roomID, playing); !errors.Is(err, ErrCannotRemoveActive) {
		t.Errorf("expected ErrCannotRemoveActive, got %v", err)
	}

	if err := orch.RemoveQueued(roomID, queued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items := orch.ListQueue(roomID); len(items) != 0 {
		t.Errorf("expected empty queue, got %+v", items)
	}

	// Removing again is a no-op.
	if err := orch.RemoveQueued(roomID, queued); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestOrchestrator_RoomsAreIndependent(t *testing.T) {
	orch, _, voice, _, _ := newTestOrchestrator()
	ctx := context.Background()

	roomA := snowflake.ID(1)
	roomB := snowflake.ID(2)

	a := mockTrack("a")
	b := mockTrack("b")
	if _, err := orch.Enqueue(ctx, roomA, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := orch.Enqueue(ctx, roomB, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.NowPlaying(roomA) != a || orch.NowPlaying(roomB) != b {
		t.Error("expected each room to play its own track")
	}

	voice.session(roomA).complete(0, nil)
	if orch.NowPlaying(roomB) != b {
		t.Error("draining one room must not affect another")
	}
}
