package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bkmrks/internal/database"
	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

// DeleteHook runs after a download record has been removed.
type DeleteHook func(ctx context.Context, d models.Download)

type DownloadRepository interface {
	UpsertPending(ctx context.Context, bookmarkID primitive.ObjectID, title string) (*models.Download, bool, error)
	ResetFailed(ctx context.Context, downloadID primitive.ObjectID) (*models.Download, error)
	FindByID(ctx context.Context, downloadID primitive.ObjectID) (*models.Download, error)
	FindByBookmarkID(ctx context.Context, bookmarkID primitive.ObjectID) (*models.Download, error)
	ListByStatus(ctx context.Context, status models.DownloadStatus) ([]models.Download, error)
	ListStale(ctx context.Context, now time.Time) ([]models.Download, error)
	Claim(ctx context.Context, downloadID primitive.ObjectID, lease time.Duration) (*models.Download, error)
	MarkCompleted(ctx context.Context, downloadID primitive.ObjectID, title, file string, size int64) error
	MarkFailed(ctx context.Context, downloadID primitive.ObjectID) error
	Delete(ctx context.Context, downloadID primitive.ObjectID) error
	DeleteByBookmarkIDs(ctx context.Context, bookmarkIDs []primitive.ObjectID) (int64, error)
	SumCompletedFileSize(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type downloadRepository struct {
	db    database.Service
	hooks []DeleteHook
}

// NewDownloadRepository returns a repository that calls hooks for every deleted
// record, whichever method removed it.
func NewDownloadRepository(db database.Service, hooks ...DeleteHook) DownloadRepository {
	return &downloadRepository{db: db, hooks: hooks}
}

func (r *downloadRepository) collection() *mongo.Collection {
	return r.db.Database().Collection("downloads")
}

func (r *downloadRepository) runHooks(ctx context.Context, docs []models.Download) {
	for _, d := range docs {
		for _, hook := range r.hooks {
			hook(ctx, d)
		}
	}
}

// UpsertPending returns the bookmark's download, creating a Pending one if none
// exists. created reports whether this call inserted it.
func (r *downloadRepository) UpsertPending(ctx context.Context, bookmarkID primitive.ObjectID, title string) (_ *models.Download, created bool, err error) {
	defer utils.ObserveQuery("download", "upsertPending", &err)()

	newID := primitive.NewObjectID()
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       newID,
		"title":     title,
		"status":    models.DownloadPending,
		"file":      "",
		"file_size": int64(0),
		"created":   now,
		"updated":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d models.Download
	err = r.collection().FindOneAndUpdate(ctx, bson.M{"bookmark_id": bookmarkID}, update, opts).Decode(&d)
	if err != nil {
		// Two concurrent upserts can race on the unique index; the loser reads the winner.
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := r.FindByBookmarkID(ctx, bookmarkID)
			return existing, false, ferr
		}
		return nil, false, fmt.Errorf("failed to upsert download: %w", err)
	}
	return &d, d.ID == newID, nil
}

func (r *downloadRepository) ResetFailed(ctx context.Context, downloadID primitive.ObjectID) (_ *models.Download, err error) {
	defer utils.ObserveQuery("download", "resetFailed", &err)()

	var d models.Download
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": downloadID, "status": models.DownloadFailed},
		bson.M{"$set": bson.M{"status": models.DownloadPending, "updated": time.Now().UTC()}},
		opts,
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to reset download: %w", err)
	}
	return &d, nil
}

func (r *downloadRepository) findOne(ctx context.Context, queryType string, filter bson.M) (_ *models.Download, err error) {
	defer utils.ObserveQuery("download", queryType, &err)()

	var d models.Download
	if err = r.collection().FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find download: %w", err)
	}
	return &d, nil
}

func (r *downloadRepository) FindByID(ctx context.Context, downloadID primitive.ObjectID) (*models.Download, error) {
	return r.findOne(ctx, "findById", bson.M{"_id": downloadID})
}

func (r *downloadRepository) FindByBookmarkID(ctx context.Context, bookmarkID primitive.ObjectID) (*models.Download, error) {
	return r.findOne(ctx, "findByBookmarkId", bson.M{"bookmark_id": bookmarkID})
}

func (r *downloadRepository) ListByStatus(ctx context.Context, status models.DownloadStatus) (_ []models.Download, err error) {
	defer utils.ObserveQuery("download", "listByStatus", &err)()

	cursor, err := r.collection().Find(ctx, bson.M{"status": status}, options.Find().SetSort(bson.D{{Key: "created", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer cursor.Close(ctx)

	downloads := []models.Download{}
	if err = cursor.All(ctx, &downloads); err != nil {
		return nil, fmt.Errorf("error decoding downloads: %w", err)
	}
	return downloads, nil
}

// ListStale returns Pending downloads whose lease ended before now. Such a record
// was claimed by an attempt that never wrote a final status.
func (r *downloadRepository) ListStale(ctx context.Context, now time.Time) (_ []models.Download, err error) {
	defer utils.ObserveQuery("download", "listStale", &err)()

	filter := bson.M{
		"status":      models.DownloadPending,
		"lease_until": bson.M{"$lte": now.UTC()},
	}
	cursor, err := r.collection().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "lease_until", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale downloads: %w", err)
	}
	defer cursor.Close(ctx)

	downloads := []models.Download{}
	if err = cursor.All(ctx, &downloads); err != nil {
		return nil, fmt.Errorf("error decoding downloads: %w", err)
	}
	return downloads, nil
}

// Claim moves a Pending or Failed download to Pending under a lease. It returns
// nil without error when the record is Completed, gone, or leased by someone else.
func (r *downloadRepository) Claim(ctx context.Context, downloadID primitive.ObjectID, lease time.Duration) (_ *models.Download, err error) {
	defer utils.ObserveQuery("download", "claim", &err)()

	now := time.Now().UTC()
	filter := bson.M{
		"_id":    downloadID,
		"status": bson.M{"$in": bson.A{models.DownloadPending, models.DownloadFailed}},
		"$or": bson.A{
			bson.M{"lease_until": bson.M{"$exists": false}},
			bson.M{"lease_until": nil},
			bson.M{"lease_until": bson.M{"$lte": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":      models.DownloadPending,
		"lease_until": now.Add(lease),
		"updated":     now,
	}}

	var d models.Download
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err = r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim download: %w", err)
	}
	return &d, nil
}

func (r *downloadRepository) MarkCompleted(ctx context.Context, downloadID primitive.ObjectID, title, file string, size int64) (err error) {
	defer utils.ObserveQuery("download", "markCompleted", &err)()

	update := bson.M{
		"$set": bson.M{
			"status":    models.DownloadCompleted,
			"title":     title,
			"file":      file,
			"file_size": size,
			"updated":   time.Now().UTC(),
		},
		"$unset": bson.M{"lease_until": ""},
	}
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": downloadID}, update)
	if err != nil {
		return fmt.Errorf("failed to complete download: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *downloadRepository) MarkFailed(ctx context.Context, downloadID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("download", "markFailed", &err)()

	update := bson.M{
		"$set": bson.M{
			"status":    models.DownloadFailed,
			"file":      "",
			"file_size": int64(0),
			"updated":   time.Now().UTC(),
		},
		"$unset": bson.M{"lease_until": ""},
	}
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": downloadID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark download failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *downloadRepository) Delete(ctx context.Context, downloadID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("download", "delete", &err)()

	var d models.Download
	if err = r.collection().FindOneAndDelete(ctx, bson.M{"_id": downloadID}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return utils.ErrNotFound
		}
		return fmt.Errorf("failed to delete download: %w", err)
	}
	r.runHooks(ctx, []models.Download{d})
	return nil
}

func (r *downloadRepository) DeleteByBookmarkIDs(ctx context.Context, bookmarkIDs []primitive.ObjectID) (_ int64, err error) {
	defer utils.ObserveQuery("download", "deleteByBookmarkIds", &err)()

	if len(bookmarkIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{"bookmark_id": bson.M{"$in": bookmarkIDs}}
	cursor, err := r.collection().Find(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to find downloads: %w", err)
	}
	var docs []models.Download
	if err = cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("error decoding downloads: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	result, err := r.collection().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete downloads: %w", err)
	}
	log.Debug().Int64("deleted", result.DeletedCount).Msg("Deleted downloads for bookmarks")
	r.runHooks(ctx, docs)
	return result.DeletedCount, nil
}

// SumCompletedFileSize returns the total bytes of userID's Completed downloads.
func (r *downloadRepository) SumCompletedFileSize(ctx context.Context, userID primitive.ObjectID) (_ int64, err error) {
	defer utils.ObserveQuery("download", "sumCompletedFileSize", &err)()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.DownloadCompleted}}},
		{{Key: "$lookup", Value: bson.M{"from": "bookmarks", "localField": "bookmark_id", "foreignField": "_id", "as": "bookmark"}}},
		{{Key: "$unwind", Value: "$bookmark"}},
		{{Key: "$match", Value: bson.M{"bookmark.user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$file_size"}}}},
	}
	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum download sizes: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("error decoding download sizes: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
