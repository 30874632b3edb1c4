package status

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sanozu/groovebot/internal/bot"
)

// PingHandler handles the /ping command.
type PingHandler struct{}

// NewPingHandler creates a new PingHandler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Handle replies with the gateway heartbeat latency.
func (h *PingHandler) Handle(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	content := "Pong!"
	if s != nil {
		content = fmt.Sprintf("Pong! %dms", s.HeartbeatLatency().Milliseconds())
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}
