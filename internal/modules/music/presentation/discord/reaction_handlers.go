package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/application/usecases"
)

// ReactionHandlers routes marker reactions on search-results messages
// into the selection flow. The bot seeds the markers itself, so its own
// reactions are ignored.
type ReactionHandlers struct {
	botID     snowflake.ID
	selection *usecases.Selection
	notifier  ports.NotificationSender
}

// NewReactionHandlers creates new ReactionHandlers.
func NewReactionHandlers(
	botID snowflake.ID,
	selection *usecases.Selection,
	notifier ports.NotificationSender,
) *ReactionHandlers {
	return &ReactionHandlers{
		botID:     botID,
		selection: selection,
		notifier:  notifier,
	}
}

// HandleReactionAdd handles MessageReactionAdd events.
func (h *ReactionHandlers) HandleReactionAdd(
	_ *discordgo.Session,
	m *discordgo.MessageReactionAdd,
) {
	if m.UserID == h.botID.String() {
		return
	}

	messageID, channelID, ok := parseReactionIDs(m.MessageID, m.ChannelID)
	if !ok {
		return
	}

	track, err := h.selection.OnSelect(context.Background(), messageID, m.Emoji.Name)
	if err != nil {
		h.reportSelectError(channelID, err)
		return
	}
	if track == nil {
		// Not a live selection message or not a rendered marker.
		return
	}

	// Queued confirmation only; the now-playing message arrives via
	// the playback-started event when the track actually starts.
	h.sendNotice(channelID, fmt.Sprintf("Queued **%s**.", track.Title))
}

// HandleReactionRemove handles MessageReactionRemove events.
func (h *ReactionHandlers) HandleReactionRemove(
	_ *discordgo.Session,
	m *discordgo.MessageReactionRemove,
) {
	if m.UserID == h.botID.String() {
		return
	}

	messageID, channelID, ok := parseReactionIDs(m.MessageID, m.ChannelID)
	if !ok {
		return
	}

	track, err := h.selection.OnDeselect(context.Background(), messageID, m.Emoji.Name)
	if err != nil {
		if errors.Is(err, usecases.ErrCannotRemoveActive) {
			h.sendNotice(channelID, "That track is already playing and can't be removed.")
		}
		return
	}
	if track == nil {
		return
	}

	h.sendNotice(channelID, fmt.Sprintf("Removed **%s** from the queue.", track.Title))
}

func (h *ReactionHandlers) reportSelectError(channelID snowflake.ID, err error) {
	switch {
	case errors.Is(err, usecases.ErrAlreadyQueued):
		h.sendNotice(channelID, "That track is already in the queue.")
	case errors.Is(err, usecases.ErrResolutionFailed):
		h.sendError(channelID, "Couldn't resolve that track. Try another one.")
	default:
		slog.Error("selection failed", "error", err)
		h.sendError(channelID, "Couldn't queue that track.")
	}
}

func (h *ReactionHandlers) sendNotice(channelID snowflake.ID, message string) {
	if err := h.notifier.SendNotice(channelID, message); err != nil {
		slog.Warn("failed to send selection notice", "channel", channelID, "error", err)
	}
}

func (h *ReactionHandlers) sendError(channelID snowflake.ID, message string) {
	if err := h.notifier.SendError(channelID, message); err != nil {
		slog.Warn("failed to send selection notice", "channel", channelID, "error", err)
	}
}

func parseReactionIDs(messageID, channelID string) (snowflake.ID, snowflake.ID, bool) {
	msgID, err := snowflake.Parse(messageID)
	if err != nil {
		return 0, 0, false
	}
	chID, err := snowflake.Parse(channelID)
	if err != nil {
		return 0, 0, false
	}
	return msgID, chID, true
}
