package ports

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// ErrVolumeUnsupported is returned by SetVolume when the active source
// has no volume control, or when there is no active source at all.
var ErrVolumeUnsupported = errors.New("active source has no volume control")

// CompletionFunc is invoked exactly once per Play call when the
// playback attempt ends, carrying the playback error if any.
type CompletionFunc func(err error)

// VoiceSession is a per-room handle onto the audio transport.
//
// Play must return once playback has been started; the completion
// callback fires later, exactly once per Play call, and always from a
// different goroutine than the caller of Play (implementations must
// never invoke it synchronously — callers may hold locks).
type VoiceSession interface {
	// Connect joins the given voice channel, moving there if the
	// session is already connected elsewhere.
	Connect(ctx context.Context, channelID snowflake.ID) error

	// Play starts playing the given stream as the current source.
	Play(ctx context.Context, ref domain.StreamRef, onComplete CompletionFunc) error

	// Stop aborts the current playback attempt, if any. Stopping an
	// idle session is a no-op. The aborted attempt's completion
	// callback still fires.
	Stop(ctx context.Context) error

	// Disconnect stops playback and leaves the voice channel.
	Disconnect(ctx context.Context) error

	IsPlaying() bool
	IsPaused() bool

	// SetVolume applies a [0,1] volume fraction to the current source
	// only. Returns ErrVolumeUnsupported when there is nothing to
	// control.
	SetVolume(fraction float64) error
}

// VoiceSessionProvider hands out the per-room voice session, creating
// the handle lazily on first use.
type VoiceSessionProvider interface {
	Session(roomID snowflake.ID) VoiceSession
}

// VoiceStateProvider reports which voice channel a user is in.
type VoiceStateProvider interface {
	// UserVoiceChannel returns the voice channel the user currently
	// occupies, or 0 if the user is not in a voice channel.
	UserVoiceChannel(roomID, userID snowflake.ID) (snowflake.ID, error)
}
