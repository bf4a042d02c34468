package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// RodFetcher renders the page in headless Chromium before parsing, for sites
// that build their head with JavaScript.
type RodFetcher struct {
	timeout time.Duration
}

func NewRodFetcher(timeout time.Duration) *RodFetcher {
	return &RodFetcher{timeout: timeout}
}

func (f *RodFetcher) Fetch(ctx context.Context, url string) (md Metadata, err error) {
	logger := log.With().Str("url", url).Logger()
	logger.Debug().Msg("Attempting to render page metadata")

	path, exists := launcher.LookPath()
	if !exists {
		return Metadata{}, errors.New("rod browser dependency not found")
	}
	controlURL, err := launcher.New().Bin(path).Launch()
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err = browser.Connect(); err != nil {
		return Metadata{}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("Error closing rod browser instance")
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to create page: %w", err)
	}
	if err = page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			return Metadata{}, fmt.Errorf("rendering timed out for %s: %w", url, pageCtx.Err())
		}
		return Metadata{}, fmt.Errorf("failed waiting for page load: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read rendered html: %w", err)
	}
	return Parse(strings.NewReader(html))
}
