package usecases

import "errors"

// Error kinds surfaced to users of the music module.
var (
	// ErrNotInVoice is returned when the requesting user is not in a voice channel.
	ErrNotInVoice = errors.New("you must be in a voice channel")

	// ErrResolutionFailed is returned when the resolver could not
	// produce a playable stream for the given input. The queue is
	// unaffected.
	ErrResolutionFailed = errors.New("could not resolve a playable stream")

	// ErrNoResults is returned when a search yields no candidates.
	ErrNoResults = errors.New("no results found")

	// ErrNothingPlaying is returned when skip is invoked with no current track.
	ErrNothingPlaying = errors.New("nothing is currently playing")

	// ErrAlreadyQueued is returned when a selection resolves to a
	// stream that is already in the pending queue.
	ErrAlreadyQueued = errors.New("that track is already in the queue")

	// ErrCannotRemoveActive is returned when a deselection targets the
	// currently playing track. The track stays queued and bound.
	ErrCannotRemoveActive = errors.New("cannot remove the currently playing track")

	// ErrUnsupported is returned when a volume change has no
	// controllable source to apply to.
	ErrUnsupported = errors.New("no controllable audio source is active")
)
