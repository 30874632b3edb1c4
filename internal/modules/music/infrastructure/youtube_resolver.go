package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

// ErrNoMatch indicates that resolution produced no playable track.
var ErrNoMatch = errors.New("no matching track found")

// YoutubeResolver resolves queries against YouTube. Direct video URLs
// are resolved with the youtube client; free-text queries go through
// yt-dlp's flat search, which is fast because it never touches the
// player API for the result list.
type YoutubeResolver struct {
	client    youtube.Client
	ytdlpPath string
}

// NewYoutubeResolver creates a new YoutubeResolver. ytdlpPath is the
// path to the yt-dlp binary used for search.
func NewYoutubeResolver(ytdlpPath string) *YoutubeResolver {
	return &YoutubeResolver{
		client: youtube.Client{
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
		},
		ytdlpPath: ytdlpPath,
	}
}

// Resolve resolves a URL or free-text query into a playable track.
// The returned track's StreamRef is a direct media URL, which expires,
// so results must not be cached across selections.
func (r *YoutubeResolver) Resolve(ctx context.Context, input string) (*domain.Track, error) {
	if _, err := youtube.ExtractVideoID(input); err == nil {
		return r.resolveVideo(ctx, input)
	}

	candidates, err := r.Search(ctx, input, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, input)
	}

	return r.resolveVideo(ctx, candidates[0].QueryRef)
}

// Search runs a flat YouTube search and returns up to limit candidates.
// Candidates carry only the watch URL and title; the stream URL is
// looked up later when a candidate is actually selected.
func (r *YoutubeResolver) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, r.ytdlpPath,
		"-J",
		"--flat-playlist",
		"--no-warnings",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Warn("yt-dlp search failed",
				"query", query,
				"stderr", strings.TrimSpace(string(exitErr.Stderr)),
			)
		}
		return nil, fmt.Errorf("failed to run yt-dlp search: %w", err)
	}

	var result struct {
		Entries []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		ref := entry.URL
		if ref == "" {
			ref = "https://www.youtube.com/watch?v=" + entry.ID
		}
		candidates = append(candidates, domain.Candidate{
			QueryRef: ref,
			Title:    entry.Title,
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

func (r *YoutubeResolver) resolveVideo(ctx context.Context, url string) (*domain.Track, error) {
	video, err := r.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no audio formats for %q", ErrNoMatch, video.Title)
	}

	best := &formats[0]
	for i := range formats {
		if formats[i].Bitrate > best.Bitrate {
			best = &formats[i]
		}
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, best)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream URL: %w", err)
	}

	return domain.NewTrack(
		domain.StreamRef(streamURL),
		video.Title,
		"https://www.youtube.com/watch?v="+video.ID,
		video.Duration,
		0,
	), nil
}

// Ensure YoutubeResolver implements ports.AudioResolver.
var _ ports.AudioResolver = (*YoutubeResolver)(nil)
