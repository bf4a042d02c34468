package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
)

func TestFolderDeletionKeepsBookmarks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	folders := NewFolderRepository(db)
	bookmarks := NewBookmarkRepository(db)

	owner := primitive.NewObjectID()
	folder, err := folders.Create(ctx, &models.Folder{UserID: owner, Title: "Reading"})
	require.NoError(t, err)

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		bm, err := bookmarks.Create(ctx, &models.Bookmark{UserID: owner, URL: "https://example.com", FolderID: &folder.ID})
		require.NoError(t, err)
		ids = append(ids, bm.ID)
	}

	cleared, err := bookmarks.ClearFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cleared)
	require.NoError(t, folders.Delete(ctx, folder.ID))

	for _, id := range ids {
		bm, err := bookmarks.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, bm.FolderID)
	}
}

func TestFolderCountsExcludeArchived(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	folders := NewFolderRepository(db)
	bookmarks := NewBookmarkRepository(db)

	owner := primitive.NewObjectID()
	b, err := folders.Create(ctx, &models.Folder{UserID: owner, Title: "B"})
	require.NoError(t, err)
	_, err = folders.Create(ctx, &models.Folder{UserID: owner, Title: "A"})
	require.NoError(t, err)
	_, err = folders.Create(ctx, &models.Folder{UserID: primitive.NewObjectID(), Title: "Other"})
	require.NoError(t, err)

	_, err = bookmarks.Create(ctx, &models.Bookmark{UserID: owner, URL: "https://a.example", FolderID: &b.ID})
	require.NoError(t, err)
	_, err = bookmarks.Create(ctx, &models.Bookmark{UserID: owner, URL: "https://b.example", FolderID: &b.ID, IsArchived: true})
	require.NoError(t, err)

	list, err := folders.ListWithCounts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.EqualValues(t, 0, list[0].BookmarksQty)
	assert.Equal(t, "B", list[1].Title)
	assert.EqualValues(t, 1, list[1].BookmarksQty)
}

func TestTagCountsAreScopedToUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tags := NewTagRepository(db)
	bookmarks := NewBookmarkRepository(db)

	go1, err := tags.Create(ctx, &models.Tag{Title: "go"})
	require.NoError(t, err)
	_, err = tags.Create(ctx, &models.Tag{Title: "unused"})
	require.NoError(t, err)

	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	_, err = bookmarks.Create(ctx, &models.Bookmark{UserID: alice, URL: "https://a.example", TagIDs: []primitive.ObjectID{go1.ID}, IsArchived: true})
	require.NoError(t, err)
	_, err = bookmarks.Create(ctx, &models.Bookmark{UserID: bob, URL: "https://b.example", TagIDs: []primitive.ObjectID{go1.ID}})
	require.NoError(t, err)
	_, err = bookmarks.Create(ctx, &models.Bookmark{UserID: alice, URL: "https://c.example"})
	require.NoError(t, err)

	list, err := tags.ListWithCounts(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "go", list[0].Title)
	assert.EqualValues(t, 1, list[0].BookmarksQty)
	assert.EqualValues(t, 0, list[1].BookmarksQty)
}

func TestListDetailedJoinsRelations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	folders := NewFolderRepository(db)
	tags := NewTagRepository(db)
	bookmarks := NewBookmarkRepository(db)
	downloads := NewDownloadRepository(db)

	owner := primitive.NewObjectID()
	folder, err := folders.Create(ctx, &models.Folder{UserID: owner, Title: "Videos"})
	require.NoError(t, err)
	tag, err := tags.Create(ctx, &models.Tag{Title: "music"})
	require.NoError(t, err)

	older, err := bookmarks.Create(ctx, &models.Bookmark{UserID: owner, URL: "https://old.example", CreatedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	newer, err := bookmarks.Create(ctx, &models.Bookmark{
		UserID:   owner,
		URL:      "https://www.youtube.com/watch?v=x",
		FolderID: &folder.ID,
		TagIDs:   []primitive.ObjectID{tag.ID},
	})
	require.NoError(t, err)
	_, _, err = downloads.UpsertPending(ctx, newer.ID, "")
	require.NoError(t, err)

	list, err := bookmarks.ListDetailed(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, newer.ID, list[0].ID)
	require.NotNil(t, list[0].Folder)
	assert.Equal(t, "Videos", list[0].Folder.Title)
	require.Len(t, list[0].Tags, 1)
	assert.Equal(t, "music", list[0].Tags[0].Title)
	require.NotNil(t, list[0].Download)
	assert.Equal(t, models.DownloadPending, list[0].Download.Status)

	assert.Equal(t, older.ID, list[1].ID)
	assert.Nil(t, list[1].Folder)
	assert.Empty(t, list[1].Tags)
	assert.Nil(t, list[1].Download)
}

func TestBookmarkUpdateClearsTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	bookmarks := NewBookmarkRepository(db)

	bm, err := bookmarks.Create(ctx, &models.Bookmark{UserID: primitive.NewObjectID(), URL: "https://a.example", TagIDs: []primitive.ObjectID{primitive.NewObjectID()}})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, bookmarks.Update(ctx, bm.ID, bson.M{"tag_ids": []primitive.ObjectID{}}))
		found, err := bookmarks.FindByID(ctx, bm.ID)
		require.NoError(t, err)
		assert.Empty(t, found.TagIDs)
	}
}
