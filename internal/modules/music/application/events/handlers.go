package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
)

// DropRoomFunc discards the selection sessions belonging to a room.
type DropRoomFunc func(roomID snowflake.ID)

// NotificationEventHandler consumes playback lifecycle events and turns
// them into channel messages. It also retires selection sessions for
// rooms whose playback has drained, since their rendered messages can
// no longer affect anything.
type NotificationEventHandler struct {
	bus      *Bus
	notifier ports.NotificationSender
	dropRoom DropRoomFunc

	wg   sync.WaitGroup
	done chan struct{}
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
func NewNotificationEventHandler(
	bus *Bus,
	notifier ports.NotificationSender,
	dropRoom DropRoomFunc,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		bus:      bus,
		notifier: notifier,
		dropRoom: dropRoom,
		done:     make(chan struct{}),
	}
}

// Start begins consuming events in background goroutines.
func (h *NotificationEventHandler) Start(ctx context.Context) {
	h.wg.Add(4)

	// Enqueue confirmations are sent at the interaction site; the
	// event is consumed here so the buffer drains.
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case event, ok := <-h.bus.TrackEnqueued():
				if !ok {
					return
				}
				slog.Debug("track enqueued",
					"room", event.RoomID,
					"track", event.Track.Title,
					"position", event.Position,
					"was_idle", event.WasIdle,
				)
			}
		}
	}()

	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case event, ok := <-h.bus.PlaybackStarted():
				if !ok {
					return
				}
				if event.TextChannelID == 0 {
					continue
				}
				if err := h.notifier.SendNowPlaying(event.TextChannelID, event.Track); err != nil {
					slog.Error("failed to send now-playing notification",
						"room", event.RoomID,
						"error", err,
					)
				}
			}
		}
	}()

	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case event, ok := <-h.bus.PlaybackFailed():
				if !ok {
					return
				}
				if event.TextChannelID == 0 {
					continue
				}
				msg := fmt.Sprintf("Skipping **%s**: playback failed.", event.Track.Title)
				if err := h.notifier.SendError(event.TextChannelID, msg); err != nil {
					slog.Error("failed to send playback-failure notification",
						"room", event.RoomID,
						"error", err,
					)
				}
			}
		}
	}()

	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case event, ok := <-h.bus.QueueDrained():
				if !ok {
					return
				}
				if h.dropRoom != nil {
					h.dropRoom(event.RoomID)
				}
			}
		}
	}()

	slog.Debug("notification event handler started")
}

// Stop stops the handler and waits for its goroutines to finish.
func (h *NotificationEventHandler) Stop() {
	close(h.done)
	h.wg.Wait()
	slog.Debug("notification event handler stopped")
}
