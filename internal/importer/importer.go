package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const (
	FormatChrome  = "chrome"
	FormatFirefox = "firefox"

	// Chrome counts microseconds from 1601-01-01.
	chromeEpochOffset = 11644473600000000
)

// Entry is one link found in a browser export.
type Entry struct {
	URL     string
	Title   string
	Folder  string
	AddedAt time.Time
}

type Result struct {
	Imported       int
	Skipped        int
	FoldersCreated int
}

// Parse extracts links from a Chrome "Bookmarks" file or a Firefox JSON backup.
// Only http and https links are returned.
func Parse(data []byte, format string) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("export is not valid JSON")
	}

	var entries []Entry
	switch format {
	case FormatChrome:
		gjson.GetBytes(data, "roots").ForEach(func(_, root gjson.Result) bool {
			walkChrome(root, "", &entries)
			return true
		})
	case FormatFirefox:
		gjson.GetBytes(data, "children").ForEach(func(_, child gjson.Result) bool {
			walkFirefox(child, "", &entries)
			return true
		})
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return entries, nil
}

func walkChrome(node gjson.Result, folder string, out *[]Entry) {
	switch node.Get("type").String() {
	case "url":
		added := time.Time{}
		if us := node.Get("date_added").Int(); us > chromeEpochOffset {
			added = time.UnixMicro(us - chromeEpochOffset).UTC()
		}
		appendEntry(out, node.Get("url").String(), node.Get("name").String(), folder, added)
	case "folder":
		current := joinFolder(folder, node.Get("name").String())
		node.Get("children").ForEach(func(_, child gjson.Result) bool {
			walkChrome(child, current, out)
			return true
		})
	}
}

func walkFirefox(node gjson.Result, folder string, out *[]Entry) {
	switch node.Get("typeCode").Int() {
	case 1:
		added := time.Time{}
		if us := node.Get("dateAdded").Int(); us > 0 {
			added = time.UnixMicro(us).UTC()
		}
		appendEntry(out, node.Get("uri").String(), node.Get("title").String(), folder, added)
	case 2:
		current := joinFolder(folder, node.Get("title").String())
		node.Get("children").ForEach(func(_, child gjson.Result) bool {
			walkFirefox(child, current, out)
			return true
		})
	}
}

func joinFolder(parent, name string) string {
	switch {
	case name == "":
		return parent
	case parent == "":
		return name
	default:
		return parent + "/" + name
	}
}

func appendEntry(out *[]Entry, url, title, folder string, added time.Time) {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return
	}
	*out = append(*out, Entry{URL: url, Title: title, Folder: folder, AddedAt: added})
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Importer stores parsed entries as bookmarks of one user.
type Importer struct {
	bookmarks repositories.BookmarkRepository
	folders   repositories.FolderRepository
	progress  io.Writer
}

// New returns an importer that draws a progress bar on progress; nil disables it.
func New(bookmarks repositories.BookmarkRepository, folders repositories.FolderRepository, progress io.Writer) *Importer {
	if progress == nil {
		progress = io.Discard
	}
	return &Importer{bookmarks: bookmarks, folders: folders, progress: progress}
}

// Import creates the missing folders and bookmarks. Links the user already
// bookmarked are skipped. Metadata is not fetched; the export title is kept.
func (im *Importer) Import(ctx context.Context, userID primitive.ObjectID, entries []Entry) (Result, error) {
	var res Result
	folderIDs := map[string]primitive.ObjectID{}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(im.progress),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
	)
	defer func() { _ = bar.Finish() }()

	for _, e := range entries {
		_ = bar.Add(1)

		exists, err := im.bookmarks.ExistsByURL(ctx, userID, e.URL)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}

		bm := &models.Bookmark{
			UserID:    userID,
			URL:       e.URL,
			Title:     truncate(strings.TrimSpace(e.Title), models.MaxBookmarkTitleLength),
			CreatedAt: e.AddedAt,
		}
		if bm.Title == "" {
			bm.Title = models.NoTitle
		}

		if e.Folder != "" {
			id, created, err := im.folder(ctx, userID, e.Folder, folderIDs)
			if err != nil {
				return res, err
			}
			if created {
				res.FoldersCreated++
			}
			bm.FolderID = &id
		}

		if _, err := im.bookmarks.Create(ctx, bm); err != nil {
			return res, err
		}
		metrics.BookmarkCreatedTotal.WithLabelValues("import").Inc()
		res.Imported++
	}

	log.Info().Str("userID", userID.Hex()).Int("imported", res.Imported).Int("skipped", res.Skipped).
		Int("folders_created", res.FoldersCreated).Msg("Import finished")
	return res, nil
}

func (im *Importer) folder(ctx context.Context, userID primitive.ObjectID, path string, cache map[string]primitive.ObjectID) (primitive.ObjectID, bool, error) {
	title := truncate(path, models.MaxFolderTitleLength)
	if id, ok := cache[title]; ok {
		return id, false, nil
	}

	existing, err := im.folders.FindByTitle(ctx, userID, title)
	switch {
	case err == nil:
		cache[title] = existing.ID
		return existing.ID, false, nil
	case !errors.Is(err, utils.ErrNotFound):
		return primitive.NilObjectID, false, err
	}

	folder, err := im.folders.Create(ctx, &models.Folder{UserID: userID, Title: title})
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	metrics.FolderCreatedTotal.Inc()
	cache[title] = folder.ID
	return folder.ID, true, nil
}
