package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/bot"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	orchestrator *usecases.Orchestrator
	trackLoader  *usecases.TrackLoader
	selection    *usecases.Selection
	notifier     ports.NotificationSender
	limiter      *UserLimiter
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	orchestrator *usecases.Orchestrator,
	trackLoader *usecases.TrackLoader,
	selection *usecases.Selection,
	notifier ports.NotificationSender,
	limiter *UserLimiter,
) *CommandHandlers {
	return &CommandHandlers{
		orchestrator: orchestrator,
		trackLoader:  trackLoader,
		selection:    selection,
		notifier:     notifier,
		limiter:      limiter,
	}
}

// interactionIDs carries the parsed snowflakes common to every handler.
type interactionIDs struct {
	roomID        snowflake.ID
	userID        snowflake.ID
	textChannelID snowflake.ID
}

func parseInteractionIDs(i *discordgo.InteractionCreate) (interactionIDs, error) {
	roomID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid guild ID: %w", err)
	}
	if i.Member == nil || i.Member.User == nil {
		return interactionIDs{}, errors.New("interaction has no member")
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid user ID: %w", err)
	}
	textChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid channel ID: %w", err)
	}
	return interactionIDs{roomID, userID, textChannelID}, nil
}

// HandlePlay handles the /play command. Resolution can take seconds,
// so the response is deferred and delivered as a followup.
func (h *CommandHandlers) HandlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	if !h.limiter.Allow(ids.userID) {
		return respondError(r, "You're doing that too fast. Try again in a moment.")
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Give me something to play.")
	}

	if err := h.orchestrator.EnsureConnected(ctx, ids.roomID, ids.userID, ids.textChannelID); err != nil {
		if errors.Is(err, usecases.ErrNotInVoice) {
			return respondError(r, "Join a voice channel first.")
		}
		return respondError(r, "Couldn't connect to your voice channel.")
	}

	if err := deferResponse(r); err != nil {
		return err
	}

	track, err := h.trackLoader.Load(ctx, usecases.LoadInput{
		Query:       query,
		RequesterID: ids.userID,
	})
	if err != nil {
		return followupError(r, fmt.Sprintf("Couldn't find anything for **%s**.", query))
	}

	position, err := h.orchestrator.Enqueue(ctx, ids.roomID, track)
	if err != nil {
		return followupError(r, "Couldn't queue the track.")
	}

	var description string
	if track.URI != "" {
		description = fmt.Sprintf("Added [%s](%s) to the queue (position %d).",
			track.Title, track.URI, position)
	} else {
		description = fmt.Sprintf("Added **%s** to the queue (position %d).",
			track.Title, position)
	}
	return followupSuccess(r, description)
}

// HandleSearch handles the /search command: it renders up to three
// candidates as a reaction-seeded message and registers the selection
// session behind it. The bot connects to the requester's voice channel
// up front so a later selection can start playback immediately.
func (h *CommandHandlers) HandleSearch(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	if !h.limiter.Allow(ids.userID) {
		return respondError(r, "You're doing that too fast. Try again in a moment.")
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Give me something to search for.")
	}

	if err := h.orchestrator.EnsureConnected(ctx, ids.roomID, ids.userID, ids.textChannelID); err != nil {
		if errors.Is(err, usecases.ErrNotInVoice) {
			return respondError(r, "Join a voice channel first.")
		}
		return respondError(r, "Couldn't connect to your voice channel.")
	}

	if err := deferResponse(r); err != nil {
		return err
	}

	candidates, err := h.selection.Render(ctx, query)
	if err != nil {
		if errors.Is(err, usecases.ErrNoResults) {
			return followupError(r, fmt.Sprintf("No results for **%s**.", query))
		}
		return followupError(r, "Search failed. Try again later.")
	}

	messageID, err := h.notifier.SendSearchResults(ids.textChannelID, query, candidates)
	if err != nil {
		return followupError(r, "Couldn't post the search results.")
	}

	h.selection.Register(messageID, ids.roomID, ids.textChannelID, ids.userID, candidates)

	return followupSuccess(r, fmt.Sprintf(
		"Found %d result(s) for **%s** — react with a number to queue a track.",
		len(candidates), query,
	))
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	current := h.orchestrator.NowPlaying(ids.roomID)
	items := h.orchestrator.ListQueue(ids.roomID)

	embed := &discordgo.MessageEmbed{
		Title: "Queue",
	}

	if current == nil && len(items) == 0 {
		embed.Description = "Queue is empty."
		return r.Respond(&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
			},
		})
	}

	var sb strings.Builder
	if current != nil {
		sb.WriteString("### Now Playing\n")
		if current.URI != "" {
			fmt.Fprintf(&sb, "[%s](%s)\n", current.Title, current.URI)
		} else {
			fmt.Fprintf(&sb, "**%s**\n", current.Title)
		}
	}
	if len(items) > 0 {
		sb.WriteString("### Up Next\n")
		for _, item := range items {
			// Escape the period so Discord does not render an ordered list.
			fmt.Fprintf(&sb, "%d\\. %s\n", item.Position, item.Title)
		}
	}
	embed.Description = sb.String()

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	skipped, err := h.orchestrator.Skip(ctx, ids.roomID)
	if err != nil {
		if errors.Is(err, usecases.ErrNothingPlaying) {
			return respondError(r, "Nothing is playing.")
		}
		return respondError(r, "Couldn't skip the current track.")
	}

	return respondSuccess(r, fmt.Sprintf("Skipped **%s**.", skipped.Title))
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	if err := h.orchestrator.Stop(ctx, ids.roomID); err != nil {
		return respondError(r, "Couldn't stop playback.")
	}

	return respondSuccess(r, "Stopped playback and cleared the queue.")
}

// HandleVolume handles the /volume command.
func (h *CommandHandlers) HandleVolume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ids, err := parseInteractionIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	var percent int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "percent" {
			percent = opt.IntValue()
		}
	}
	if percent < 0 || percent > 100 {
		return respondError(r, "Volume must be between 0 and 100.")
	}

	if err := h.orchestrator.SetVolume(ids.roomID, float64(percent)/100); err != nil {
		if errors.Is(err, usecases.ErrUnsupported) {
			return respondError(r, "Volume control isn't available right now.")
		}
		return respondError(r, "Couldn't set the volume.")
	}

	return respondSuccess(r, fmt.Sprintf("Volume set to %d%%.", percent))
}

// Response helpers.

func deferResponse(r bot.Responder) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}

func followupSuccess(r bot.Responder, message string) error {
	_, err := r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Description: message,
				Color:       colorSuccess,
			},
		},
	})
	return err
}

func followupError(r bot.Responder, message string) error {
	_, err := r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Error",
				Description: message,
				Color:       colorError,
			},
		},
	})
	return err
}
