package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const chromeExport = `{
  "roots": {
    "bookmark_bar": {
      "type": "folder", "name": "Bookmarks bar",
      "children": [
        {"type": "url", "name": "Go", "url": "https://go.dev/", "date_added": "13303449600000000"},
        {"type": "folder", "name": "Video", "children": [
          {"type": "url", "name": "", "url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
        ]},
        {"type": "url", "name": "Bookmarklet", "url": "javascript:alert(1)"}
      ]
    },
    "other": {"type": "folder", "name": "", "children": [
      {"type": "url", "name": "Example", "url": "HTTP://example.com/"}
    ]}
  }
}`

const firefoxExport = `{
  "title": "", "typeCode": 2,
  "children": [
    {"title": "menu", "typeCode": 2, "children": [
      {"title": "Mozilla", "typeCode": 1, "uri": "https://www.mozilla.org/", "dateAdded": 1700000000000000},
      {"title": "Recent", "typeCode": 1, "uri": "place:sort=8"}
    ]}
  ]
}`

func TestParseChrome(t *testing.T) {
	entries, err := Parse([]byte(chromeExport), FormatChrome)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "https://go.dev/", entries[0].URL)
	assert.Equal(t, "Bookmarks bar", entries[0].Folder)
	assert.Equal(t, 2022, entries[0].AddedAt.Year())
	assert.Equal(t, "Bookmarks bar/Video", entries[1].Folder)
	assert.Equal(t, "", entries[2].Folder)
}

func TestParseFirefox(t *testing.T) {
	entries, err := Parse([]byte(firefoxExport), FormatFirefox)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "menu", entries[0].Folder)
	assert.Equal(t, time.UnixMicro(1700000000000000).UTC(), entries[0].AddedAt)
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("{"), FormatChrome)
	assert.Error(t, err)
	_, err = Parse([]byte("{}"), "safari")
	assert.Error(t, err)
}

type fakeBookmarks struct {
	repositories.BookmarkRepository
	items []models.Bookmark
}

func (f *fakeBookmarks) ExistsByURL(_ context.Context, userID primitive.ObjectID, url string) (bool, error) {
	for _, bm := range f.items {
		if bm.UserID == userID && bm.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookmarks) Create(_ context.Context, bm *models.Bookmark) (*models.Bookmark, error) {
	bm.ID = primitive.NewObjectID()
	f.items = append(f.items, *bm)
	return bm, nil
}

type fakeFolders struct {
	repositories.FolderRepository
	items []models.Folder
}

func (f *fakeFolders) FindByTitle(_ context.Context, userID primitive.ObjectID, title string) (*models.Folder, error) {
	for i := range f.items {
		if f.items[i].UserID == userID && f.items[i].Title == title {
			return &f.items[i], nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeFolders) Create(_ context.Context, folder *models.Folder) (*models.Folder, error) {
	folder.ID = primitive.NewObjectID()
	f.items = append(f.items, *folder)
	return folder, nil
}

func TestImport(t *testing.T) {
	userID := primitive.NewObjectID()
	bookmarks := &fakeBookmarks{items: []models.Bookmark{{UserID: userID, URL: "https://go.dev/"}}}
	folders := &fakeFolders{items: []models.Folder{{ID: primitive.NewObjectID(), UserID: userID, Title: "Bookmarks bar/Video"}}}

	entries, err := Parse([]byte(chromeExport), FormatChrome)
	require.NoError(t, err)

	res, err := New(bookmarks, folders, nil).Import(context.Background(), userID, entries)
	require.NoError(t, err)
	assert.Equal(t, Result{Imported: 2, Skipped: 1, FoldersCreated: 0}, res)
	require.Len(t, bookmarks.items, 3)

	video := bookmarks.items[1]
	assert.Equal(t, models.NoTitle, video.Title)
	require.NotNil(t, video.FolderID)
	assert.Equal(t, folders.items[0].ID, *video.FolderID)
	assert.Nil(t, bookmarks.items[2].FolderID)

	res, err = New(bookmarks, folders, nil).Import(context.Background(), userID, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped)
}

func TestImportCreatesFoldersOnce(t *testing.T) {
	userID := primitive.NewObjectID()
	folders := &fakeFolders{}
	entries := []Entry{
		{URL: "https://a.example.com/", Title: "A", Folder: "Reading"},
		{URL: "https://b.example.com/", Title: "B", Folder: "Reading"},
	}

	res, err := New(&fakeBookmarks{}, folders, nil).Import(context.Background(), userID, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FoldersCreated)
	assert.Len(t, folders.items, 1)
}
