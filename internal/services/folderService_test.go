package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

func newFolderService(e *env) FolderService {
	return NewFolderService(e.folders, e.bookmarks, e.users)
}

func TestCreateFolder(t *testing.T) {
	e := newEnv()
	alice := e.user("alice", 0)
	bob := e.user("bob", 0)
	svc := newFolderService(e)

	folder, err := svc.CreateFolder(context.Background(), alice.ID, models.CreateFolderRequest{UserID: alice.ID.Hex(), Title: "Reading"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, folder.UserID)
	assert.Equal(t, "Reading", folder.Title)

	_, err = svc.CreateFolder(context.Background(), alice.ID, models.CreateFolderRequest{UserID: bob.ID.Hex(), Title: "Sneaky"})
	assert.ErrorIs(t, err, utils.ErrForbidden)

	missing := primitive.NewObjectID().Hex()
	_, err = svc.CreateFolder(context.Background(), alice.ID, models.CreateFolderRequest{UserID: missing, Title: "Ghost"})
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"User with user_id=" + missing + " does not exist!"}, ve.Fields["user_id"])

	_, err = svc.CreateFolder(context.Background(), alice.ID, models.CreateFolderRequest{UserID: alice.ID.Hex(), Title: strings.Repeat("x", 65)})
	ve, ok = utils.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"Ensure this field has no more than 64 characters."}, ve.Fields["title"])
}

func TestListFoldersExcludesArchived(t *testing.T) {
	e := newEnv()
	u := e.user("alice", 0)
	folder := e.folder(u.ID, "Reading")
	e.folder(u.ID, "Archive")
	for i, archived := range []bool{false, false, true} {
		bm := e.bookmark(u.ID, "https://example.com/"+string(rune('a'+i)))
		bm.FolderID = &folder.ID
		bm.IsArchived = archived
		e.store.bookmarks[bm.ID] = bm
	}

	folders, err := newFolderService(e).ListFolders(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "Archive", folders[0].Title)
	assert.EqualValues(t, 0, folders[0].BookmarksQty)
	assert.Equal(t, "Reading", folders[1].Title)
	assert.EqualValues(t, 2, folders[1].BookmarksQty)
}

func TestUpdateFolder(t *testing.T) {
	e := newEnv()
	alice := e.user("alice", 0)
	bob := e.user("bob", 0)
	folder := e.folder(alice.ID, "Reading")
	svc := newFolderService(e)

	updated, err := svc.UpdateFolder(context.Background(), alice.ID, folder.ID, models.UpdateFolderRequest{Title: models.Some("Later")})
	require.NoError(t, err)
	assert.Equal(t, "Later", updated.Title)

	unchanged, err := svc.UpdateFolder(context.Background(), alice.ID, folder.ID, models.UpdateFolderRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Later", unchanged.Title)

	_, err = svc.UpdateFolder(context.Background(), bob.ID, folder.ID, models.UpdateFolderRequest{Title: models.Some("Bob's")})
	assert.ErrorIs(t, err, utils.ErrForbidden)

	_, err = svc.UpdateFolder(context.Background(), alice.ID, primitive.NewObjectID(), models.UpdateFolderRequest{Title: models.Some("x")})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestDeleteFolderKeepsBookmarks(t *testing.T) {
	e := newEnv()
	alice := e.user("alice", 0)
	bob := e.user("bob", 0)
	folder := e.folder(alice.ID, "Reading")
	bm := e.bookmark(alice.ID, "https://example.com/")
	bm.FolderID = &folder.ID
	e.store.bookmarks[bm.ID] = bm
	svc := newFolderService(e)

	assert.ErrorIs(t, svc.DeleteFolder(context.Background(), bob.ID, folder.ID), utils.ErrForbidden)
	assert.Contains(t, e.store.folders, folder.ID)

	require.NoError(t, svc.DeleteFolder(context.Background(), alice.ID, folder.ID))
	assert.NotContains(t, e.store.folders, folder.ID)
	require.Contains(t, e.store.bookmarks, bm.ID)
	assert.Nil(t, e.store.bookmarks[bm.ID].FolderID)
}

func TestTagService(t *testing.T) {
	e := newEnv()
	alice := e.user("alice", 0)
	bob := e.user("bob", 0)
	svc := NewTagService(e.tags)

	golang, err := svc.CreateTag(context.Background(), models.CreateTagRequest{Title: "golang"})
	require.NoError(t, err)

	_, err = svc.CreateTag(context.Background(), models.CreateTagRequest{Title: "golang"})
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "title")

	_, err = svc.CreateTag(context.Background(), models.CreateTagRequest{})
	_, ok = utils.AsValidationError(err)
	assert.True(t, ok)

	for _, owner := range []models.User{alice, bob, bob} {
		bm := e.bookmark(owner.ID, "https://example.com/")
		bm.TagIDs = []primitive.ObjectID{golang.ID}
		e.store.bookmarks[bm.ID] = bm
	}

	tags, err := svc.ListTags(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.EqualValues(t, 2, tags[0].BookmarksQty)
}
