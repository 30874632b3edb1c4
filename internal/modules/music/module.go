package music

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/bot"
	"github.com/sanozu/groovebot/internal/modules/music/application/events"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/application/usecases"
	"github.com/sanozu/groovebot/internal/modules/music/infrastructure"
	"github.com/sanozu/groovebot/internal/modules/music/presentation"
	"github.com/sanozu/groovebot/internal/modules/music/presentation/discord"
	"golang.org/x/time/rate"
)

func init() {
	bot.Register(&Module{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*Module)(nil)

// Resolution-triggering commands per user: one every few seconds with a
// small burst.
const (
	userRateInterval = 5 * time.Second
	userRateBurst    = 3
)

// Module provides per-room music playback: a FIFO queue, slash
// commands, and reaction-based track selection.
type Module struct {
	config *Config

	commandHandlers  *discord.CommandHandlers
	reactionHandlers *discord.ReactionHandlers
	lavalink         *infrastructure.LavalinkBackend

	bus                 *events.Bus
	notificationHandler *events.NotificationEventHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *Module) Name() string {
	return "music"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *Module) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":   m.commandHandlers.HandlePlay,
		"search": m.commandHandlers.HandleSearch,
		"queue":  m.commandHandlers.HandleQueue,
		"skip":   m.commandHandlers.HandleSkip,
		"stop":   m.commandHandlers.HandleStop,
		"volume": m.commandHandlers.HandleVolume,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			if m.lavalink != nil {
				m.lavalink.OnVoiceServerUpdate(event)
			}
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			if m.lavalink != nil {
				m.lavalink.OnVoiceStateUpdate(event)
			}
		},
		func(s *discordgo.Session, event *discordgo.MessageReactionAdd) {
			if m.reactionHandlers != nil {
				m.reactionHandlers.HandleReactionAdd(s, event)
			}
		},
		func(s *discordgo.Session, event *discordgo.MessageReactionRemove) {
			if m.reactionHandlers != nil {
				m.reactionHandlers.HandleReactionRemove(s, event)
			}
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *Module) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		slog.Warn("music module initialized without session, playback disabled")
		return m.initDetached()
	}
	return m.initWithSession(deps.Session)
}

// initDetached wires the handlers with no audio backend so the module
// can load in tests that never open a Discord connection.
func (m *Module) initDetached() error {
	rooms := infrastructure.NewMemoryRoomRepository()
	sessions := infrastructure.NewMemorySelectionRepository()

	orchestrator := usecases.NewOrchestrator(rooms, nil, nil, events.NewBus(1))
	selection := usecases.NewSelection(sessions, nil, orchestrator, 0)

	m.commandHandlers = discord.NewCommandHandlers(
		orchestrator,
		usecases.NewTrackLoader(nil),
		selection,
		nil,
		discord.NewUserLimiter(rate.Every(userRateInterval), userRateBurst),
	)
	return nil
}

func (m *Module) initWithSession(session *discordgo.Session) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.bus = events.NewBus(events.DefaultEventBufferSize)

	rooms := infrastructure.NewMemoryRoomRepository()
	sessions := infrastructure.NewMemorySelectionRepository()
	voiceState := infrastructure.NewVoiceStateProvider(session)
	notifier := infrastructure.NewNotifier(session)

	var (
		resolver ports.AudioResolver
		voice    ports.VoiceSessionProvider
	)
	switch m.config.AudioBackend {
	case BackendLavalink:
		backend, err := infrastructure.NewLavalinkBackend(session, infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
		})
		if err != nil {
			return err
		}
		m.lavalink = backend
		resolver = backend
		voice = backend
	default:
		resolver = infrastructure.NewYoutubeResolver(m.config.YtdlpPath)
		voice = infrastructure.NewDiscordVoiceProvider(session, m.config.FFmpegPath)
	}

	orchestrator := usecases.NewOrchestrator(rooms, voice, voiceState, m.bus)
	trackLoader := usecases.NewTrackLoader(resolver)
	selection := usecases.NewSelection(sessions, resolver, orchestrator, m.config.SelectionTTL)

	m.notificationHandler = events.NewNotificationEventHandler(m.bus, notifier, selection.DropRoom)
	m.notificationHandler.Start(m.ctx)
	selection.StartJanitor(m.ctx, time.Minute)

	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return err
	}

	m.commandHandlers = discord.NewCommandHandlers(
		orchestrator,
		trackLoader,
		selection,
		notifier,
		discord.NewUserLimiter(rate.Every(userRateInterval), userRateBurst),
	)
	m.reactionHandlers = discord.NewReactionHandlers(botID, selection, notifier)

	slog.Info("music module initialized", "backend", m.config.AudioBackend)

	return nil
}

// Shutdown cleans up module resources.
func (m *Module) Shutdown() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.notificationHandler != nil {
		m.notificationHandler.Stop()
	}
	if m.bus != nil {
		m.bus.Close()
	}
	if m.lavalink != nil {
		m.lavalink.Close()
	}
	return nil
}
