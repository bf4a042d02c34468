package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"bkmrks/internal/jobs"
	"bkmrks/internal/metadata"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

// store is a tiny in-memory backend shared by the fake repositories so that
// cross-collection behaviour (cascades, joins) can be observed in tests.
type store struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]models.User
	folders   map[primitive.ObjectID]models.Folder
	tags      map[primitive.ObjectID]models.Tag
	bookmarks map[primitive.ObjectID]models.Bookmark
	downloads map[primitive.ObjectID]models.Download
	otps      map[primitive.ObjectID]models.OTP
	deleted   []models.Download
}

func newStore() *store {
	return &store{
		users:     map[primitive.ObjectID]models.User{},
		folders:   map[primitive.ObjectID]models.Folder{},
		tags:      map[primitive.ObjectID]models.Tag{},
		bookmarks: map[primitive.ObjectID]models.Bookmark{},
		downloads: map[primitive.ObjectID]models.Download{},
		otps:      map[primitive.ObjectID]models.OTP{},
	}
}

// users

type fakeUsers struct {
	repositories.UserRepository
	s *store
}

func (f fakeUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return nil, utils.ErrConflict
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	f.s.users[user.ID] = *user
	out := *user
	return &out, nil
}

func (f fakeUsers) find(match func(models.User) bool) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return f.find(func(u models.User) bool { return u.ID == id })
}

func (f fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u models.User) bool { return u.Username == username })
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email })
}

func (f fakeUsers) FindByTelegramID(_ context.Context, telegramID string) (*models.User, error) {
	return f.find(func(u models.User) bool { return u.TelegramID != nil && *u.TelegramID == telegramID })
}

func (f fakeUsers) Update(_ context.Context, id primitive.ObjectID, fields bson.M) (*mongo.UpdateResult, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	for k, v := range fields {
		switch k {
		case "username":
			u.Username = v.(string)
		case "email":
			u.Email = v.(string)
		case "password":
			u.Password = v.(string)
		case "profile_image":
			u.ProfileImage = v.(string)
		case "disk_quota":
			u.DiskQuota = v.(int)
		case "telegram_id":
			if v == nil {
				u.TelegramID = nil
			} else {
				tid := v.(string)
				for _, other := range f.s.users {
					if other.ID != id && other.TelegramID != nil && *other.TelegramID == tid {
						return nil, utils.ErrConflict
					}
				}
				u.TelegramID = &tid
			}
		}
	}
	f.s.users[id] = u
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f fakeUsers) Delete(_ context.Context, id primitive.ObjectID) (*mongo.DeleteResult, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(f.s.users, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (f fakeUsers) CountAll(context.Context) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.s.users)), nil
}

// folders

type fakeFolders struct {
	repositories.FolderRepository
	s *store
}

func (f fakeFolders) Create(_ context.Context, folder *models.Folder) (*models.Folder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	folder.ID = primitive.NewObjectID()
	f.s.folders[folder.ID] = *folder
	out := *folder
	return &out, nil
}

func (f fakeFolders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Folder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	folder, ok := f.s.folders[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &folder, nil
}

func (f fakeFolders) ListWithCounts(_ context.Context, userID primitive.ObjectID) ([]models.FolderListItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.FolderListItem{}
	for _, folder := range f.s.folders {
		if folder.UserID != userID {
			continue
		}
		item := models.FolderListItem{ID: folder.ID, UserID: folder.UserID, Title: folder.Title}
		for _, bm := range f.s.bookmarks {
			if bm.FolderID != nil && *bm.FolderID == folder.ID && !bm.IsArchived {
				item.BookmarksQty++
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f fakeFolders) UpdateTitle(_ context.Context, id primitive.ObjectID, title string) (*models.Folder, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	folder, ok := f.s.folders[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	folder.Title = title
	f.s.folders[id] = folder
	return &folder, nil
}

func (f fakeFolders) Delete(_ context.Context, id primitive.ObjectID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.folders[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.s.folders, id)
	return nil
}

func (f fakeFolders) DeleteByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, folder := range f.s.folders {
		if folder.UserID == userID {
			delete(f.s.folders, id)
			n++
		}
	}
	return n, nil
}

// tags

type fakeTags struct {
	repositories.TagRepository
	s *store
}

func (f fakeTags) Create(_ context.Context, tag *models.Tag) (*models.Tag, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.tags {
		if t.Title == tag.Title {
			return nil, utils.ErrConflict
		}
	}
	tag.ID = primitive.NewObjectID()
	f.s.tags[tag.ID] = *tag
	out := *tag
	return &out, nil
}

func (f fakeTags) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Tag, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.Tag{}
	for _, id := range ids {
		if t, ok := f.s.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f fakeTags) ListWithCounts(_ context.Context, userID primitive.ObjectID) ([]models.TagListItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.TagListItem{}
	for _, t := range f.s.tags {
		item := models.TagListItem{ID: t.ID, Title: t.Title}
		for _, bm := range f.s.bookmarks {
			if bm.UserID != userID {
				continue
			}
			for _, id := range bm.TagIDs {
				if id == t.ID {
					item.BookmarksQty++
				}
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// bookmarks

type fakeBookmarks struct {
	repositories.BookmarkRepository
	s *store
}

func (f fakeBookmarks) Create(_ context.Context, bm *models.Bookmark) (*models.Bookmark, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	bm.ID = primitive.NewObjectID()
	if bm.TagIDs == nil {
		bm.TagIDs = []primitive.ObjectID{}
	}
	bm.CreatedAt = time.Now().UTC()
	bm.UpdatedAt = bm.CreatedAt
	f.s.bookmarks[bm.ID] = *bm
	out := *bm
	return &out, nil
}

func (f fakeBookmarks) FindByID(_ context.Context, id primitive.ObjectID) (*models.Bookmark, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	bm, ok := f.s.bookmarks[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &bm, nil
}

func (f fakeBookmarks) detail(bm models.Bookmark) models.BookmarkDetail {
	d := models.BookmarkDetail{
		ID: bm.ID, UserID: bm.UserID, URL: bm.URL, Title: bm.Title, Description: bm.Description,
		ImageURL: bm.ImageURL, IsFavorite: bm.IsFavorite, IsRead: bm.IsRead, IsArchived: bm.IsArchived,
		CreatedAt: bm.CreatedAt, UpdatedAt: bm.UpdatedAt, Tags: []models.Tag{},
	}
	if bm.FolderID != nil {
		if folder, ok := f.s.folders[*bm.FolderID]; ok {
			d.Folder = &folder
		}
	}
	for _, id := range bm.TagIDs {
		if t, ok := f.s.tags[id]; ok {
			d.Tags = append(d.Tags, t)
		}
	}
	for _, dl := range f.s.downloads {
		if dl.BookmarkID == bm.ID {
			dl := dl
			d.Download = &dl
		}
	}
	return d
}

func (f fakeBookmarks) FindDetailedByID(_ context.Context, id primitive.ObjectID) (*models.BookmarkDetail, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	bm, ok := f.s.bookmarks[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	d := f.detail(bm)
	return &d, nil
}

func (f fakeBookmarks) ListDetailed(_ context.Context, userID primitive.ObjectID) ([]models.BookmarkDetail, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.BookmarkDetail{}
	for _, bm := range f.s.bookmarks {
		if bm.UserID == userID {
			out = append(out, f.detail(bm))
		}
	}
	return out, nil
}

func (f fakeBookmarks) Update(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	bm, ok := f.s.bookmarks[id]
	if !ok {
		return utils.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "url":
			bm.URL = v.(string)
		case "title":
			bm.Title = v.(string)
		case "description":
			bm.Description = v.(string)
		case "image_url":
			bm.ImageURL = v.(string)
		case "is_favorite":
			bm.IsFavorite = v.(bool)
		case "is_read":
			bm.IsRead = v.(bool)
		case "is_archived":
			bm.IsArchived = v.(bool)
		case "folder_id":
			bm.FolderID = v.(*primitive.ObjectID)
		case "tag_ids":
			bm.TagIDs = v.([]primitive.ObjectID)
		}
	}
	bm.UpdatedAt = time.Now().UTC()
	f.s.bookmarks[id] = bm
	return nil
}

func (f fakeBookmarks) Delete(_ context.Context, id primitive.ObjectID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.bookmarks[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.s.bookmarks, id)
	return nil
}

func (f fakeBookmarks) ClearFolder(_ context.Context, folderID primitive.ObjectID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, bm := range f.s.bookmarks {
		if bm.FolderID != nil && *bm.FolderID == folderID {
			bm.FolderID = nil
			f.s.bookmarks[id] = bm
			n++
		}
	}
	return n, nil
}

func (f fakeBookmarks) FindIDsByUser(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []primitive.ObjectID
	for id, bm := range f.s.bookmarks {
		if bm.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f fakeBookmarks) DeleteByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, bm := range f.s.bookmarks {
		if bm.UserID == userID {
			delete(f.s.bookmarks, id)
			n++
		}
	}
	return n, nil
}

// downloads

type fakeDownloads struct {
	repositories.DownloadRepository
	s *store
}

func (f fakeDownloads) add(bookmarkID primitive.ObjectID, status models.DownloadStatus, size int64) models.Download {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d := models.Download{ID: primitive.NewObjectID(), BookmarkID: bookmarkID, Status: status, FileSize: size}
	if status == models.DownloadCompleted {
		d.File = "videos/" + d.ID.Hex() + ".mp4"
	}
	f.s.downloads[d.ID] = d
	return d
}

func (f fakeDownloads) UpsertPending(_ context.Context, bookmarkID primitive.ObjectID, title string) (*models.Download, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, d := range f.s.downloads {
		if d.BookmarkID == bookmarkID {
			return &d, false, nil
		}
	}
	d := models.Download{ID: primitive.NewObjectID(), BookmarkID: bookmarkID, Title: title, Status: models.DownloadPending}
	f.s.downloads[d.ID] = d
	return &d, true, nil
}

func (f fakeDownloads) ResetFailed(_ context.Context, id primitive.ObjectID) (*models.Download, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.downloads[id]
	if !ok || d.Status != models.DownloadFailed {
		return nil, utils.ErrNotFound
	}
	d.Status = models.DownloadPending
	f.s.downloads[id] = d
	return &d, nil
}

func (f fakeDownloads) FindByID(_ context.Context, id primitive.ObjectID) (*models.Download, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.downloads[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &d, nil
}

func (f fakeDownloads) ListByStatus(_ context.Context, status models.DownloadStatus) ([]models.Download, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Download
	for _, d := range f.s.downloads {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeDownloads) ListStale(_ context.Context, now time.Time) ([]models.Download, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Download
	for _, d := range f.s.downloads {
		if d.Status == models.DownloadPending && d.LeaseUntil != nil && !d.LeaseUntil.After(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeDownloads) DeleteByBookmarkIDs(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	want := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for id, d := range f.s.downloads {
		if want[d.BookmarkID] {
			delete(f.s.downloads, id)
			f.s.deleted = append(f.s.deleted, d)
			n++
		}
	}
	return n, nil
}

func (f fakeDownloads) SumCompletedFileSize(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var total int64
	for _, d := range f.s.downloads {
		if d.Status != models.DownloadCompleted {
			continue
		}
		if bm, ok := f.s.bookmarks[d.BookmarkID]; ok && bm.UserID == userID {
			total += d.FileSize
		}
	}
	return total, nil
}

// otps

type fakeOTPs struct {
	repositories.OTPRepository
	s *store
}

func (f fakeOTPs) Create(_ context.Context, otp *models.OTP) (*models.OTP, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	otp.ID = primitive.NewObjectID()
	f.s.otps[otp.ID] = *otp
	out := *otp
	return &out, nil
}

func (f fakeOTPs) FindActive(_ context.Context, userID primitive.ObjectID, code, purpose string) (*models.OTP, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, otp := range f.s.otps {
		if otp.UserID == userID && otp.OTPCode == code && otp.Purpose == purpose && !otp.IsUsed && otp.ExpiresAt.After(time.Now()) {
			return &otp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeOTPs) MarkAsUsed(_ context.Context, id primitive.ObjectID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	otp := f.s.otps[id]
	otp.IsUsed = true
	f.s.otps[id] = otp
	return nil
}

func (f fakeOTPs) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, otp := range f.s.otps {
		if otp.UserID == userID {
			delete(f.s.otps, id)
		}
	}
	return nil
}

// collaborators

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (f *fakeScheduler) Schedule(_ context.Context, jobType string, payload interface{}) (jobs.Job, error) {
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	job, err := jobs.NewJob(jobType, payload)
	if err != nil {
		return jobs.Job{}, err
	}
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	return job, nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type fakeFetcher struct {
	md  metadata.Metadata
	err error
}

func (f fakeFetcher) Fetch(context.Context, string) (metadata.Metadata, error) {
	return f.md, f.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendEmail(to, subject, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject+"|"+msg)
	return nil
}

// env bundles the fakes with the services under test.
type env struct {
	store     *store
	users     fakeUsers
	folders   fakeFolders
	tags      fakeTags
	bookmarks fakeBookmarks
	downloads fakeDownloads
	otps      fakeOTPs
	scheduler *fakeScheduler
}

func newEnv() *env {
	s := newStore()
	return &env{
		store:     s,
		users:     fakeUsers{s: s},
		folders:   fakeFolders{s: s},
		tags:      fakeTags{s: s},
		bookmarks: fakeBookmarks{s: s},
		downloads: fakeDownloads{s: s},
		otps:      fakeOTPs{s: s},
		scheduler: &fakeScheduler{},
	}
}

func (e *env) user(username string, quota int) models.User {
	u, err := e.users.Create(context.Background(), &models.User{Username: username, Email: username + "@example.com", DiskQuota: quota})
	if err != nil {
		panic(err)
	}
	return *u
}

func (e *env) bookmark(userID primitive.ObjectID, url string) models.Bookmark {
	bm, _ := e.bookmarks.Create(context.Background(), &models.Bookmark{UserID: userID, URL: url, Title: "Video"})
	return *bm
}

func (e *env) folder(userID primitive.ObjectID, title string) models.Folder {
	f, _ := e.folders.Create(context.Background(), &models.Folder{UserID: userID, Title: title})
	return *f
}

func (e *env) tag(title string) models.Tag {
	t, _ := e.tags.Create(context.Background(), &models.Tag{Title: title})
	return *t
}
