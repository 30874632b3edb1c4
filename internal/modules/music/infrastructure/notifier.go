package infrastructure

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// Embed colors.
const (
	colorRed   = 0xE74C3C
	colorGreen = 0x2ECC71
)

// Notifier sends notifications to Discord channels.
type Notifier struct {
	session *discordgo.Session
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
	}
}

// SendNowPlaying sends a "Now Playing" embed to the channel.
func (n *Notifier) SendNowPlaying(channelID snowflake.ID, track *domain.Track) error {
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Now Playing",
		},
		Title: track.Title,
		URL:   track.URI,
		Color: colorGreen,
	}

	if track.Duration > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  formatDuration(track.Duration),
			Inline: true,
		})
	}
	// Mentions render in field values but not in embed footers.
	if track.RequesterID != 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  fmt.Sprintf("<@%s>", track.RequesterID),
			Inline: true,
		})
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// SendSearchResults sends a search-results embed listing the candidates
// and seeds it with one marker reaction per candidate. Returns the ID
// of the sent message, which keys the selection session.
func (n *Notifier) SendSearchResults(
	channelID snowflake.ID,
	query string,
	candidates []domain.Candidate,
) (snowflake.ID, error) {
	var sb strings.Builder
	for i, candidate := range candidates {
		fmt.Fprintf(&sb, "%s **%s**\n", ports.MarkerEmojis[i], candidate.Title)
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Search Results",
		},
		Description: sb.String(),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Query: %s — react to queue a track", query),
		},
	}

	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	if err != nil {
		return 0, err
	}

	for i := range candidates {
		if i >= len(ports.MarkerEmojis) {
			break
		}
		if err := n.session.MessageReactionAdd(channelID.String(), msg.ID, ports.MarkerEmojis[i]); err != nil {
			return 0, fmt.Errorf("failed to seed marker reaction: %w", err)
		}
	}

	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return 0, err
	}
	return messageID, nil
}

// SendNotice sends a plain informational embed to the channel.
func (n *Notifier) SendNotice(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// SendError sends an error message embed to the channel.
func (n *Notifier) SendError(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// formatDuration renders a duration as m:ss or h:mm:ss.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Ensure Notifier implements ports.NotificationSender.
var _ ports.NotificationSender = (*Notifier)(nil)
