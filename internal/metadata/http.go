package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pages larger than this are cut; the head is all we read.
const maxBodyBytes = 2 << 20

// HTTPFetcher does one GET per URL and parses the body with goquery.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Metadata, error) {
	log.Debug().Str("url", url).Msg("Attempting to fetch page metadata")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bkmrks/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Page answered with an error status, parsing body anyway")
	}

	md, err := Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Metadata{}, err
	}
	log.Debug().Str("url", url).Str("title", md.Title).Msg("Fetched page metadata")
	return md, nil
}
