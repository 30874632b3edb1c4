package music

import (
	"fmt"
	"time"
)

// Audio backend names.
const (
	BackendNative   = "native"
	BackendLavalink = "lavalink"
)

// Config holds the music module configuration.
type Config struct {
	// AudioBackend selects how audio is resolved and streamed:
	// "native" runs ffmpeg/yt-dlp locally, "lavalink" delegates to a
	// Lavalink node.
	AudioBackend string `env:"AUDIO_BACKEND" envDefault:"native"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	YtdlpPath  string `env:"YTDLP_PATH"  envDefault:"yt-dlp"`

	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`

	// SelectionTTL bounds how long a search-results message stays
	// reactive.
	SelectionTTL time.Duration `env:"SELECTION_TTL" envDefault:"15m"`
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.AudioBackend {
	case BackendNative:
		return nil
	case BackendLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" {
			return fmt.Errorf("audio backend %q requires LAVALINK_ADDRESS and LAVALINK_PASSWORD", c.AudioBackend)
		}
		return nil
	default:
		return fmt.Errorf("unknown audio backend %q", c.AudioBackend)
	}
}
