package ports

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// NotificationSender sends user-facing messages to text channels.
type NotificationSender interface {
	// SendNowPlaying announces the track that just started playing.
	SendNowPlaying(channelID snowflake.ID, track *domain.Track) error

	// SendSearchResults renders up to three candidates bound to the
	// fixed marker emojis, in candidate order, and returns the ID of
	// the rendered message so reactions can be tracked against it.
	SendSearchResults(channelID snowflake.ID, query string, candidates []domain.Candidate) (snowflake.ID, error)

	// SendNotice sends a neutral informational message to the channel.
	SendNotice(channelID snowflake.ID, message string) error

	// SendError reports a failure to the channel.
	SendError(channelID snowflake.ID, message string) error
}
