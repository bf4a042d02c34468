package downloader

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

type fakeDownloads struct {
	repositories.DownloadRepository

	mu      sync.Mutex
	records map[primitive.ObjectID]*models.Download
	deleted []models.Download
	onDel   repositories.DeleteHook
}

func newFakeDownloads(onDel repositories.DeleteHook) *fakeDownloads {
	return &fakeDownloads{records: map[primitive.ObjectID]*models.Download{}, onDel: onDel}
}

func (f *fakeDownloads) add(bookmarkID primitive.ObjectID, status models.DownloadStatus) *models.Download {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &models.Download{ID: primitive.NewObjectID(), BookmarkID: bookmarkID, Status: status}
	f.records[d.ID] = d
	return d
}

func (f *fakeDownloads) get(id primitive.ObjectID) (models.Download, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.records[id]
	if !ok {
		return models.Download{}, false
	}
	return *d, true
}

func (f *fakeDownloads) FindByID(_ context.Context, id primitive.ObjectID) (*models.Download, error) {
	d, ok := f.get(id)
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &d, nil
}

func (f *fakeDownloads) Claim(_ context.Context, id primitive.ObjectID, lease time.Duration) (*models.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.records[id]
	if !ok || d.Status == models.DownloadCompleted {
		return nil, nil
	}
	if d.LeaseUntil != nil && d.LeaseUntil.After(time.Now()) {
		return nil, nil
	}
	until := time.Now().Add(lease)
	d.Status = models.DownloadPending
	d.LeaseUntil = &until
	out := *d
	return &out, nil
}

func (f *fakeDownloads) MarkCompleted(ctx context.Context, id primitive.ObjectID, title, file string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.records[id]
	if !ok {
		return utils.ErrNotFound
	}
	d.Status, d.Title, d.File, d.FileSize, d.LeaseUntil = models.DownloadCompleted, title, file, size, nil
	return nil
}

func (f *fakeDownloads) MarkFailed(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.records[id]
	if !ok {
		return utils.ErrNotFound
	}
	d.Status, d.File, d.FileSize, d.LeaseUntil = models.DownloadFailed, "", 0, nil
	return nil
}

func (f *fakeDownloads) Delete(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	d, ok := f.records[id]
	if ok {
		delete(f.records, id)
		f.deleted = append(f.deleted, *d)
	}
	f.mu.Unlock()
	if !ok {
		return utils.ErrNotFound
	}
	if f.onDel != nil {
		f.onDel(ctx, *d)
	}
	return nil
}

type fakeBookmarks struct {
	repositories.BookmarkRepository
	records map[primitive.ObjectID]*models.Bookmark
}

func (f *fakeBookmarks) FindByID(_ context.Context, id primitive.ObjectID) (*models.Bookmark, error) {
	bm, ok := f.records[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := *bm
	return &out, nil
}
