package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const progressThrottle = 500 * time.Millisecond

type YouTubeSource struct {
	client   youtube.Client
	progress io.Writer
}

// NewYouTubeSource returns a source that draws a byte progress bar on progress.
// A nil progress writer disables the bar.
func NewYouTubeSource(progress io.Writer) *YouTubeSource {
	if progress == nil {
		progress = io.Discard
	}
	return &YouTubeSource{progress: progress}
}

// bestMP4 picks the highest resolution mp4 format that carries an audio track.
func bestMP4(formats youtube.FormatList) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.AudioChannels == 0 {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	if best == nil {
		return nil, errors.New("no mp4 format with audio available")
	}
	return best, nil
}

func (s *YouTubeSource) Fetch(ctx context.Context, url string, w io.Writer) (string, error) {
	video, err := s.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to load video info: %w", err)
	}

	format, err := bestMP4(video.Formats)
	if err != nil {
		return "", err
	}
	log.Info().Str("url", url).Str("title", video.Title).Str("quality", format.QualityLabel).Msg("Starting video download")

	stream, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("failed to open video stream: %w", err)
	}
	defer stream.Close()

	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription(video.Title),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(s.progress) }),
	)
	if _, err := io.Copy(io.MultiWriter(w, bar), stream); err != nil {
		return "", fmt.Errorf("failed to copy video stream: %w", err)
	}
	_ = bar.Finish()

	return video.Title, nil
}
