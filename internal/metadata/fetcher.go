package metadata

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"bkmrks/internal/models"
)

// Metadata is what a page says about itself.
type Metadata struct {
	Title       string
	Description string
	ImageURL    string
}

// Fetcher loads a URL and extracts its Metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Metadata, error)
}

// Parse reads an HTML document. The title is the first <title> in <head>, or any
// <title> when the head has none, with surrounding whitespace trimmed. It falls
// back to models.NoTitle and is cut to the bookmark title limit; og:description
// and og:image default to "".
func Parse(r io.Reader) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = models.NoTitle
	}

	return Metadata{
		Title:       truncate(title, models.MaxBookmarkTitleLength),
		Description: metaProperty(doc, "og:description"),
		ImageURL:    metaProperty(doc, "og:image"),
	}, nil
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
