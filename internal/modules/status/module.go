package status

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sanozu/groovebot/internal/bot"
)

func init() {
	bot.Register(&Module{})
}

// Module provides liveness commands like /ping.
type Module struct {
	pingHandler *PingHandler
}

// Name returns the module name.
func (m *Module) Name() string {
	return "status"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Replies with Pong! and the gateway latency",
		},
	}
}

// CommandHandlers returns the command handlers for this module.
func (m *Module) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"ping": m.pingHandler.Handle,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return nil
}

// Init initializes the module.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	m.pingHandler = NewPingHandler()
	return nil
}

// Shutdown cleans up module resources.
func (m *Module) Shutdown() error {
	return nil
}
