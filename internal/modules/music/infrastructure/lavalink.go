package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// voiceConnectionTimeout is the maximum time to wait for a voice
// connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready once both
// events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events so that both VoiceStateUpdate
// and VoiceServerUpdate are received before forwarding to Lavalink.
// This prevents "Partial Lavalink voice state" errors when events
// arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// LavalinkBackend wraps DisGoLink to provide both track resolution and
// per-room voice sessions backed by a Lavalink node. StreamRefs
// produced by this backend are Lavalink's encoded track strings.
type LavalinkBackend struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle
	// out-of-order events.
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	// completions holds the pending playback completion callback per
	// guild; the orchestrator plays at most one track per room at a
	// time, so one slot per guild is enough.
	completionMu sync.Mutex
	completions  map[snowflake.ID]ports.CompletionFunc
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
}

// NewLavalinkBackend creates a new LavalinkBackend and connects to the
// configured node. The Discord session must already be open.
func NewLavalinkBackend(
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkBackend, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	backend := &LavalinkBackend{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		completions:  make(map[snowflake.ID]ports.CompletionFunc),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(backend.onTrackStart),
		disgolink.WithListenerFunc(backend.onTrackEnd),
		disgolink.WithListenerFunc(backend.onTrackException),
		disgolink.WithListenerFunc(backend.onTrackStuck),
	)
	backend.link = link

	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return backend, nil
}

// Resolve resolves a URL or free-text query into a playable track via
// the Lavalink node. Free text goes through a YouTube search and takes
// the first hit.
func (b *LavalinkBackend) Resolve(ctx context.Context, input string) (*domain.Track, error) {
	query := input
	if !isURL(input) {
		query = "ytsearch:" + input
	}

	result, err := b.loadTracks(ctx, query)
	if err != nil {
		return nil, err
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return b.convertTrack(data), nil

	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, input)
		}
		return b.convertTrack(data.Tracks[0]), nil

	case lavalink.Search:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, input)
		}
		return b.convertTrack(data[0]), nil

	case lavalink.Exception:
		return nil, fmt.Errorf("failed to load track: %s", data.Error())

	default:
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, input)
	}
}

// Search runs a YouTube search via the Lavalink node and returns up to
// limit candidates. Candidates reference the track URI so selection
// re-resolves through the node.
func (b *LavalinkBackend) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	result, err := b.loadTracks(ctx, "ytsearch:"+query)
	if err != nil {
		return nil, err
	}

	tracks, ok := result.Data.(lavalink.Search)
	if !ok {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, track := range tracks {
		ref := track.Info.Identifier
		if track.Info.URI != nil {
			ref = *track.Info.URI
		}
		candidates = append(candidates, domain.Candidate{
			QueryRef: ref,
			Title:    track.Info.Title,
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

func (b *LavalinkBackend) loadTracks(ctx context.Context, query string) (*lavalink.LoadResult, error) {
	node := b.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return result, nil
}

func (b *LavalinkBackend) convertTrack(track lavalink.Track) *domain.Track {
	info := track.Info
	uri := ""
	if info.URI != nil {
		uri = *info.URI
	}

	return domain.NewTrack(
		domain.StreamRef(track.Encoded),
		info.Title,
		uri,
		time.Duration(info.Length)*time.Millisecond,
		0,
	)
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Session returns the voice session for the room.
func (b *LavalinkBackend) Session(roomID snowflake.ID) ports.VoiceSession {
	return &lavalinkSession{backend: b, guildID: roomID}
}

// Close shuts down the node connections.
func (b *LavalinkBackend) Close() {
	b.link.Close()
}

func (b *LavalinkBackend) setCompletion(guildID snowflake.ID, fn ports.CompletionFunc) {
	b.completionMu.Lock()
	defer b.completionMu.Unlock()
	b.completions[guildID] = fn
}

func (b *LavalinkBackend) takeCompletion(guildID snowflake.ID) ports.CompletionFunc {
	b.completionMu.Lock()
	defer b.completionMu.Unlock()

	fn := b.completions[guildID]
	delete(b.completions, guildID)
	return fn
}

// lavalinkSession adapts a single guild's Lavalink player to the voice
// session interface.
type lavalinkSession struct {
	backend *LavalinkBackend
	guildID snowflake.ID
}

// Connect joins the voice channel. It waits for both VoiceStateUpdate
// and VoiceServerUpdate events before returning.
func (s *lavalinkSession) Connect(ctx context.Context, channelID snowflake.ID) error {
	b := s.backend

	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	b.pendingMu.Lock()
	b.pending[s.guildID] = pending
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, s.guildID)
		b.pendingMu.Unlock()
	}()

	err := b.session.ChannelVoiceJoinManual(s.guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-pending.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}
}

// Play starts playing the encoded track. Completion is reported from
// the node's track-end event, never synchronously.
func (s *lavalinkSession) Play(ctx context.Context, ref domain.StreamRef, onComplete ports.CompletionFunc) error {
	b := s.backend
	b.setCompletion(s.guildID, onComplete)

	player := b.link.Player(s.guildID)
	if err := player.Update(ctx, lavalink.WithEncodedTrack(string(ref))); err != nil {
		b.takeCompletion(s.guildID)
		return fmt.Errorf("failed to play track: %w", err)
	}

	return nil
}

// Stop stops the current playback. The node emits a track-end event,
// which fires the pending completion callback.
func (s *lavalinkSession) Stop(ctx context.Context) error {
	player := s.backend.link.ExistingPlayer(s.guildID)
	if player == nil {
		return nil
	}

	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}

	return nil
}

// Disconnect destroys the player and leaves the voice channel.
func (s *lavalinkSession) Disconnect(ctx context.Context) error {
	b := s.backend

	player := b.link.ExistingPlayer(s.guildID)
	if player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", s.guildID, "error", err)
		}
	}

	err := b.session.ChannelVoiceJoinManual(s.guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// IsPlaying reports whether the guild's player has an active track.
func (s *lavalinkSession) IsPlaying() bool {
	player := s.backend.link.ExistingPlayer(s.guildID)
	return player != nil && player.Track() != nil && !player.Paused()
}

// IsPaused reports whether the guild's player is paused.
func (s *lavalinkSession) IsPaused() bool {
	player := s.backend.link.ExistingPlayer(s.guildID)
	return player != nil && player.Paused()
}

// SetVolume sets the player volume. Lavalink expresses volume in
// percent, 100 being the default.
func (s *lavalinkSession) SetVolume(fraction float64) error {
	player := s.backend.link.ExistingPlayer(s.guildID)
	if player == nil {
		return ports.ErrVolumeUnsupported
	}

	if err := player.Update(context.Background(), lavalink.WithVolume(int(fraction*100))); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (b *LavalinkBackend) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := b.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		b.forwardBufferedVoiceEvents(guildID, buffer)
	}

	b.pendingMu.Lock()
	pending := b.pending[guildID]
	b.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (b *LavalinkBackend) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only handle updates for the bot itself
	if event.UserID != b.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Disconnects forward immediately; there is no VoiceServerUpdate
	// to wait for.
	if channelID == nil {
		b.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		b.clearVoiceBuffer(guildID)
		return
	}

	buffer := b.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceState(channelID, sessionID) {
		b.forwardBufferedVoiceEvents(guildID, buffer)
	}

	b.pendingMu.Lock()
	pending := b.pending[guildID]
	b.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(true)
	}
}

func (b *LavalinkBackend) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	b.voiceBufferMu.Lock()
	defer b.voiceBufferMu.Unlock()

	buffer, exists := b.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		b.voiceBuffers[guildID] = buffer
	}
	return buffer
}

func (b *LavalinkBackend) clearVoiceBuffer(guildID snowflake.ID) {
	b.voiceBufferMu.Lock()
	defer b.voiceBufferMu.Unlock()
	delete(b.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to
// Lavalink in the order it expects.
func (b *LavalinkBackend) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	b.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	b.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (b *LavalinkBackend) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (b *LavalinkBackend) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	fn := b.takeCompletion(player.GuildID())
	if fn == nil {
		return
	}

	var err error
	if event.Reason == lavalink.TrackEndReasonLoadFailed {
		err = fmt.Errorf("track load failed: %s", event.Track.Info.Title)
	}
	fn(err)
}

func (b *LavalinkBackend) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	// A track-end event follows; the completion callback fires there.
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (b *LavalinkBackend) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

// Ensure LavalinkBackend implements the resolver and voice ports.
var (
	_ ports.AudioResolver        = (*LavalinkBackend)(nil)
	_ ports.VoiceSessionProvider = (*LavalinkBackend)(nil)
	_ ports.VoiceSession         = (*lavalinkSession)(nil)
)
