package infrastructure

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
	"layeh.com/gopus"
)

// Opus frame parameters expected by Discord voice.
const (
	sampleRate    = 48000
	audioChannels = 2
	frameSamples  = 960
	frameBytes    = frameSamples * audioChannels * 2
)

// ErrNotConnected indicates a playback request against a session that
// has no live voice connection.
var ErrNotConnected = errors.New("not connected to a voice channel")

// DiscordVoiceProvider manages one native voice session per room.
// Audio is decoded by an ffmpeg subprocess and encoded to Opus
// in-process.
type DiscordVoiceProvider struct {
	session    *discordgo.Session
	ffmpegPath string

	mu       sync.Mutex
	sessions map[snowflake.ID]*discordVoiceSession
}

// NewDiscordVoiceProvider creates a new DiscordVoiceProvider.
func NewDiscordVoiceProvider(session *discordgo.Session, ffmpegPath string) *DiscordVoiceProvider {
	return &DiscordVoiceProvider{
		session:    session,
		ffmpegPath: ffmpegPath,
		sessions:   make(map[snowflake.ID]*discordVoiceSession),
	}
}

// Session returns the voice session for the room, creating it lazily.
func (p *DiscordVoiceProvider) Session(roomID snowflake.ID) ports.VoiceSession {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[roomID]
	if !ok {
		sess = newDiscordVoiceSession(p.session, roomID, p.ffmpegPath)
		p.sessions[roomID] = sess
	}
	return sess
}

// Ensure DiscordVoiceProvider implements ports.VoiceSessionProvider.
var _ ports.VoiceSessionProvider = (*DiscordVoiceProvider)(nil)

type discordVoiceSession struct {
	session    *discordgo.Session
	guildID    snowflake.ID
	ffmpegPath string

	// volumeMilli is the playback volume in thousandths, applied as a
	// scale factor on decoded PCM samples.
	volumeMilli atomic.Int64

	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	cancel  context.CancelFunc
	playing bool
	gen     uint64
}

func newDiscordVoiceSession(session *discordgo.Session, guildID snowflake.ID, ffmpegPath string) *discordVoiceSession {
	s := &discordVoiceSession{
		session:    session,
		guildID:    guildID,
		ffmpegPath: ffmpegPath,
	}
	s.volumeMilli.Store(1000)
	return s
}

// Connect joins the voice channel, moving the existing connection if
// the session is already connected elsewhere.
func (s *discordVoiceSession) Connect(ctx context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc != nil && s.vc.ChannelID == channelID.String() {
		return nil
	}

	vc, err := s.session.ChannelVoiceJoin(s.guildID.String(), channelID.String(), false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	s.vc = vc

	slog.Info("joined voice channel", "guild", s.guildID, "channel", channelID)
	return nil
}

// Play starts streaming the referenced media. It returns once the
// stream pipeline has been spawned; decode or transport failures after
// that point are reported through onComplete. onComplete fires exactly
// once, always from a separate goroutine.
func (s *discordVoiceSession) Play(_ context.Context, ref domain.StreamRef, onComplete ports.CompletionFunc) error {
	s.mu.Lock()

	if s.vc == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.cancel != nil {
		// Replace whatever is streaming; the old goroutine reports its
		// own completion on the way out.
		s.cancel()
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.playing = true
	s.gen++
	gen := s.gen
	vc := s.vc
	s.mu.Unlock()

	var once sync.Once
	fire := func(err error) {
		once.Do(func() {
			if onComplete != nil {
				onComplete(err)
			}
		})
	}

	go s.stream(streamCtx, gen, vc, string(ref), fire)
	return nil
}

// stream pipes ffmpeg's s16le output through the Opus encoder into the
// voice connection until EOF, error, or cancellation.
func (s *discordVoiceSession) stream(ctx context.Context, gen uint64, vc *discordgo.VoiceConnection, url string, fire func(error)) {
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-i", url,
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(audioChannels),
		"-loglevel", "warning",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.finish(gen)
		fire(fmt.Errorf("failed to open ffmpeg pipe: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		s.finish(gen)
		fire(fmt.Errorf("failed to start ffmpeg: %w", err))
		return
	}

	encoder, err := gopus.NewEncoder(sampleRate, audioChannels, gopus.Audio)
	if err != nil {
		_ = cmd.Wait()
		s.finish(gen)
		fire(fmt.Errorf("failed to create opus encoder: %w", err))
		return
	}

	if err := vc.Speaking(true); err != nil {
		slog.Warn("failed to set speaking state", "guild", s.guildID, "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			slog.Warn("failed to clear speaking state", "guild", s.guildID, "error", err)
		}
	}()

	reader := bufio.NewReaderSize(stdout, frameBytes*4)
	raw := make([]byte, frameBytes)
	pcm := make([]int16, frameSamples*audioChannels)

	var streamErr error
loop:
	for {
		if ctx.Err() != nil {
			break
		}

		if _, err := io.ReadFull(reader, raw); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				streamErr = fmt.Errorf("failed to read pcm stream: %w", err)
			}
			break
		}

		volume := float64(s.volumeMilli.Load()) / 1000
		for i := range pcm {
			sample := int16(binary.LittleEndian.Uint16(raw[2*i:]))
			pcm[i] = int16(float64(sample) * volume)
		}

		frame, err := encoder.Encode(pcm, frameSamples, frameBytes)
		if err != nil {
			streamErr = fmt.Errorf("failed to encode opus frame: %w", err)
			break
		}

		select {
		case vc.OpusSend <- frame:
		case <-ctx.Done():
			break loop
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil && streamErr == nil {
		streamErr = fmt.Errorf("ffmpeg exited: %w", err)
	}

	s.finish(gen)

	if ctx.Err() != nil {
		// Deliberate stop, not a playback failure.
		fire(nil)
		return
	}
	fire(streamErr)
}

// finish clears the playing flag and cancel func, unless a newer
// stream has already taken over the session.
func (s *discordVoiceSession) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	s.playing = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels the active stream, if any. The completion callback of
// the cancelled stream still fires.
func (s *discordVoiceSession) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

// Disconnect stops playback and leaves the voice channel.
func (s *discordVoiceSession) Disconnect(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return nil
	}
	if err := s.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from voice channel: %w", err)
	}
	s.vc = nil

	slog.Info("left voice channel", "guild", s.guildID)
	return nil
}

// IsPlaying reports whether a stream is currently active.
func (s *discordVoiceSession) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

// IsPaused always reports false; the native pipeline has no pause.
func (s *discordVoiceSession) IsPaused() bool {
	return false
}

// SetVolume sets the PCM scale factor for the active stream.
func (s *discordVoiceSession) SetVolume(fraction float64) error {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()

	if !playing {
		return ports.ErrVolumeUnsupported
	}

	s.volumeMilli.Store(int64(fraction * 1000))
	return nil
}

// Ensure discordVoiceSession implements ports.VoiceSession.
var _ ports.VoiceSession = (*discordVoiceSession)(nil)
