package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

func TestUpsertPendingIsOnePerBookmark(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	downloads := NewDownloadRepository(db)

	bookmarkID := primitive.NewObjectID()
	first, created, err := downloads.UpsertPending(ctx, bookmarkID, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.DownloadPending, first.Status)

	second, created, err := downloads.UpsertPending(ctx, bookmarkID, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestClaimLease(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	downloads := NewDownloadRepository(db)

	d, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)

	claimed, err := downloads.Claim(ctx, d.ID, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NotNil(t, claimed.LeaseUntil)

	again, err := downloads.Claim(ctx, d.ID, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again, "a live lease blocks a second claim")

	require.NoError(t, downloads.MarkFailed(ctx, d.ID))
	failed, err := downloads.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadFailed, failed.Status)
	assert.Empty(t, failed.File)
	assert.Nil(t, failed.LeaseUntil)

	reclaimed, err := downloads.Claim(ctx, d.ID, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, models.DownloadPending, reclaimed.Status)

	require.NoError(t, downloads.MarkCompleted(ctx, d.ID, "Title", "videos/a.mp4", 42))
	done, err := downloads.Claim(ctx, d.ID, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, done, "completed downloads are never claimed")
}

func TestListStale(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	downloads := NewDownloadRepository(db)

	expired, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)
	_, err = downloads.Claim(ctx, expired.ID, time.Millisecond)
	require.NoError(t, err)

	live, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)
	_, err = downloads.Claim(ctx, live.ID, time.Hour)
	require.NoError(t, err)

	_, _, err = downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)

	stale, err := downloads.ListStale(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, expired.ID, stale[0].ID)
}

func TestResetFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	downloads := NewDownloadRepository(db)

	d, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)

	_, err = downloads.ResetFailed(ctx, d.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	require.NoError(t, downloads.MarkFailed(ctx, d.ID))
	reset, err := downloads.ResetFailed(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadPending, reset.Status)
}

func TestDeleteRunsHooks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var removed []string
	downloads := NewDownloadRepository(db, func(_ context.Context, d models.Download) {
		removed = append(removed, d.File)
	})

	a, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)
	require.NoError(t, downloads.MarkCompleted(ctx, a.ID, "a", "videos/a.mp4", 1))
	b, _, err := downloads.UpsertPending(ctx, primitive.NewObjectID(), "")
	require.NoError(t, err)
	require.NoError(t, downloads.MarkCompleted(ctx, b.ID, "b", "videos/b.mp4", 1))

	require.NoError(t, downloads.Delete(ctx, a.ID))
	n, err := downloads.DeleteByBookmarkIDs(ctx, []primitive.ObjectID{b.BookmarkID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.ElementsMatch(t, []string{"videos/a.mp4", "videos/b.mp4"}, removed)
}

func TestSumCompletedFileSize(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	bookmarks := NewBookmarkRepository(db)
	downloads := NewDownloadRepository(db)

	owner, other := primitive.NewObjectID(), primitive.NewObjectID()

	total, err := downloads.SumCompletedFileSize(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, total)

	add := func(user primitive.ObjectID, size int64, complete bool) {
		bm, err := bookmarks.Create(ctx, &models.Bookmark{UserID: user, URL: "https://youtu.be/x"})
		require.NoError(t, err)
		d, _, err := downloads.UpsertPending(ctx, bm.ID, "")
		require.NoError(t, err)
		if complete {
			require.NoError(t, downloads.MarkCompleted(ctx, d.ID, "t", "videos/x.mp4", size))
		}
	}
	add(owner, 1000, true)
	add(owner, 2000, true)
	add(owner, 5000, false)
	add(other, 9000, true)

	total, err = downloads.SumCompletedFileSize(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, total)
}
