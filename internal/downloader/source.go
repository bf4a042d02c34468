// Package downloader fetches bookmarked videos into the media root.
package downloader

import (
	"context"
	"io"
	"strings"
)

var supportedPrefixes = []string{
	"https://www.youtube.com/",
	"https://youtu.be/",
	"https://youtube.com/",
}

// IsSupportedURL reports whether url points at a host we can download from.
func IsSupportedURL(url string) bool {
	for _, prefix := range supportedPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// VideoSource streams the best mp4 rendition of url into w and returns the video title.
type VideoSource interface {
	Fetch(ctx context.Context, url string, w io.Writer) (title string, err error)
}
