package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/events"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/application/usecases"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
	"github.com/sanozu/groovebot/internal/modules/music/infrastructure"
	"golang.org/x/time/rate"
)

// Fixed IDs used by the interaction fixtures.
const (
	testGuildID   = "1"
	testChannelID = "2"
	testUserID    = "7"
)

var testVoiceChannelID = snowflake.ID(9)

type fakeVoiceSession struct {
	mu sync.Mutex

	connectErr error
	playErr    error
	volumeErr  error

	connectedTo []snowflake.ID
	plays       []domain.StreamRef
	completions []ports.CompletionFunc
	stopCalls   int
	disconnects int
	volume      float64
}

func (s *fakeVoiceSession) Connect(_ context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connectedTo = append(s.connectedTo, channelID)
	return nil
}

func (s *fakeVoiceSession) Play(_ context.Context, ref domain.StreamRef, onComplete ports.CompletionFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.plays = append(s.plays, ref)
	s.completions = append(s.completions, onComplete)
	return nil
}

func (s *fakeVoiceSession) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return nil
}

func (s *fakeVoiceSession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

func (s *fakeVoiceSession) IsPlaying() bool { return false }
func (s *fakeVoiceSession) IsPaused() bool  { return false }

func (s *fakeVoiceSession) SetVolume(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumeErr != nil {
		return s.volumeErr
	}
	s.volume = fraction
	return nil
}

type fakeVoiceProvider struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*fakeVoiceSession
}

func newFakeVoiceProvider() *fakeVoiceProvider {
	return &fakeVoiceProvider{sessions: make(map[snowflake.ID]*fakeVoiceSession)}
}

func (p *fakeVoiceProvider) Session(roomID snowflake.ID) ports.VoiceSession {
	return p.session(roomID)
}

func (p *fakeVoiceProvider) session(roomID snowflake.ID) *fakeVoiceSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[roomID]
	if !ok {
		sess = &fakeVoiceSession{}
		p.sessions[roomID] = sess
	}
	return sess
}

type fakeVoiceState struct {
	channels map[snowflake.ID]snowflake.ID
}

func (v *fakeVoiceState) UserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	return v.channels[userID], nil
}

type fakeResolver struct {
	tracks     map[string]*domain.Track
	resolveErr error

	searchResults []domain.Candidate
	searchErr     error
}

func (r *fakeResolver) Resolve(_ context.Context, input string) (*domain.Track, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	track, ok := r.tracks[input]
	if !ok {
		return nil, usecases.ErrNoResults
	}
	c := *track
	return &c, nil
}

func (r *fakeResolver) Search(_ context.Context, _ string, limit int) ([]domain.Candidate, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	results := r.searchResults
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type fakeNotifier struct {
	mu sync.Mutex

	searchMessageID snowflake.ID
	searchErr       error

	nowPlaying []*domain.Track
	notices    []string
	errors     []string
}

func (n *fakeNotifier) SendNowPlaying(_ snowflake.ID, track *domain.Track) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nowPlaying = append(n.nowPlaying, track)
	return nil
}

func (n *fakeNotifier) SendSearchResults(_ snowflake.ID, _ string, _ []domain.Candidate) (snowflake.ID, error) {
	if n.searchErr != nil {
		return 0, n.searchErr
	}
	return n.searchMessageID, nil
}

func (n *fakeNotifier) SendNotice(_ snowflake.ID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, message)
	return nil
}

func (n *fakeNotifier) SendError(_ snowflake.ID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return nil
}

func (n *fakeNotifier) lastNotice() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return ""
	}
	return n.notices[len(n.notices)-1]
}

func (n *fakeNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

// handlerFixture wires CommandHandlers and ReactionHandlers over an
// in-memory stack with fake transports.
type handlerFixture struct {
	handlers   *CommandHandlers
	reactions  *ReactionHandlers
	orch       *usecases.Orchestrator
	selection  *usecases.Selection
	selections *infrastructure.MemorySelectionRepository
	voice      *fakeVoiceProvider
	resolver   *fakeResolver
	notifier   *fakeNotifier
}

func newHandlerFixture() *handlerFixture {
	voice := newFakeVoiceProvider()
	voiceState := &fakeVoiceState{channels: map[snowflake.ID]snowflake.ID{
		snowflake.ID(7): testVoiceChannelID,
	}}
	resolver := &fakeResolver{tracks: map[string]*domain.Track{}}
	notifier := &fakeNotifier{searchMessageID: snowflake.ID(555)}
	selections := infrastructure.NewMemorySelectionRepository()

	orch := usecases.NewOrchestrator(
		infrastructure.NewMemoryRoomRepository(),
		voice,
		voiceState,
		events.NewBus(16),
	)
	selection := usecases.NewSelection(selections, resolver, orch, 0)

	return &handlerFixture{
		handlers: NewCommandHandlers(
			orch,
			usecases.NewTrackLoader(resolver),
			selection,
			notifier,
			NewUserLimiter(rate.Inf, 1),
		),
		reactions:  NewReactionHandlers(snowflake.ID(999), selection, notifier),
		orch:       orch,
		selection:  selection,
		selections: selections,
		voice:      voice,
		resolver:   resolver,
		notifier:   notifier,
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionString,
		Name:  name,
		Value: value,
	}
}

func intOption(name string, value float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionInteger,
		Name:  name,
		Value: value,
	}
}

func commandInteraction(options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   testGuildID,
			ChannelID: testChannelID,
			Member:    &discordgo.Member{User: &discordgo.User{ID: testUserID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Options: options,
			},
		},
	}
}

func reactionAdd(userID, messageID, emoji string) *discordgo.MessageReactionAdd {
	return &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{
			UserID:    userID,
			MessageID: messageID,
			ChannelID: testChannelID,
			GuildID:   testGuildID,
			Emoji:     discordgo.Emoji{Name: emoji},
		},
	}
}

func reactionRemove(userID, messageID, emoji string) *discordgo.MessageReactionRemove {
	return &discordgo.MessageReactionRemove{
		MessageReaction: &discordgo.MessageReaction{
			UserID:    userID,
			MessageID: messageID,
			ChannelID: testChannelID,
			GuildID:   testGuildID,
			Emoji:     discordgo.Emoji{Name: emoji},
		},
	}
}
