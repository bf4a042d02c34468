package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bkmrks/internal/database"
	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

type BookmarkRepository interface {
	Create(ctx context.Context, bm *models.Bookmark) (*models.Bookmark, error)
	FindByID(ctx context.Context, bookmarkID primitive.ObjectID) (*models.Bookmark, error)
	FindDetailedByID(ctx context.Context, bookmarkID primitive.ObjectID) (*models.BookmarkDetail, error)
	ListDetailed(ctx context.Context, userID primitive.ObjectID) ([]models.BookmarkDetail, error)
	ExistsByURL(ctx context.Context, userID primitive.ObjectID, url string) (bool, error)
	Update(ctx context.Context, bookmarkID primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, bookmarkID primitive.ObjectID) error
	ClearFolder(ctx context.Context, folderID primitive.ObjectID) (int64, error)
	FindIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type bookmarkRepository struct {
	db database.Service
}

func NewBookmarkRepository(db database.Service) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) collection() *mongo.Collection {
	return r.db.Database().Collection("bookmarks")
}

func (r *bookmarkRepository) Create(ctx context.Context, bm *models.Bookmark) (_ *models.Bookmark, err error) {
	defer utils.ObserveQuery("bookmark", "create", &err)()

	if bm.ID.IsZero() {
		bm.ID = primitive.NewObjectID()
	}
	if bm.TagIDs == nil {
		bm.TagIDs = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	if bm.CreatedAt.IsZero() {
		bm.CreatedAt = now
	}
	bm.UpdatedAt = now

	if _, err = r.collection().InsertOne(ctx, bm); err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return bm, nil
}

func (r *bookmarkRepository) FindByID(ctx context.Context, bookmarkID primitive.ObjectID) (_ *models.Bookmark, err error) {
	defer utils.ObserveQuery("bookmark", "findById", &err)()

	var bm models.Bookmark
	if err = r.collection().FindOne(ctx, bson.M{"_id": bookmarkID}).Decode(&bm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	return &bm, nil
}

// detailPipeline joins folder, tags and download onto the matched bookmarks.
func detailPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{"from": "folders", "localField": "folder_id", "foreignField": "_id", "as": "folder"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$folder", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{"from": "tags", "localField": "tag_ids", "foreignField": "_id", "as": "tags"}}},
		{{Key: "$lookup", Value: bson.M{"from": "downloads", "localField": "_id", "foreignField": "bookmark_id", "as": "download"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$download", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$sort", Value: bson.D{{Key: "created", Value: -1}, {Key: "_id", Value: -1}}}},
	}
}

func (r *bookmarkRepository) ListDetailed(ctx context.Context, userID primitive.ObjectID) (_ []models.BookmarkDetail, err error) {
	defer utils.ObserveQuery("bookmark", "listDetailed", &err)()

	cursor, err := r.collection().Aggregate(ctx, detailPipeline(bson.M{"user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookmarks: %w", err)
	}
	defer cursor.Close(ctx)

	bookmarks := []models.BookmarkDetail{}
	if err = cursor.All(ctx, &bookmarks); err != nil {
		return nil, fmt.Errorf("error decoding bookmarks: %w", err)
	}
	for i := range bookmarks {
		if bookmarks[i].Tags == nil {
			bookmarks[i].Tags = []models.Tag{}
		}
	}
	return bookmarks, nil
}

func (r *bookmarkRepository) FindDetailedByID(ctx context.Context, bookmarkID primitive.ObjectID) (_ *models.BookmarkDetail, err error) {
	defer utils.ObserveQuery("bookmark", "findDetailedById", &err)()

	cursor, err := r.collection().Aggregate(ctx, detailPipeline(bson.M{"_id": bookmarkID}))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookmark: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err = cursor.Err(); err != nil {
			return nil, fmt.Errorf("failed to retrieve bookmark: %w", err)
		}
		return nil, utils.ErrNotFound
	}
	var bm models.BookmarkDetail
	if err = cursor.Decode(&bm); err != nil {
		return nil, fmt.Errorf("error decoding bookmark: %w", err)
	}
	if bm.Tags == nil {
		bm.Tags = []models.Tag{}
	}
	return &bm, nil
}

func (r *bookmarkRepository) ExistsByURL(ctx context.Context, userID primitive.ObjectID, url string) (_ bool, err error) {
	defer utils.ObserveQuery("bookmark", "existsByUrl", &err)()

	n, err := r.collection().CountDocuments(ctx, bson.M{"user_id": userID, "url": url}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return n > 0, nil
}

// Update applies set and bumps the updated timestamp.
func (r *bookmarkRepository) Update(ctx context.Context, bookmarkID primitive.ObjectID, set bson.M) (err error) {
	defer utils.ObserveQuery("bookmark", "update", &err)()

	fields := bson.M{"updated": time.Now().UTC()}
	for k, v := range set {
		fields[k] = v
	}
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": bookmarkID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *bookmarkRepository) Delete(ctx context.Context, bookmarkID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("bookmark", "delete", &err)()

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": bookmarkID})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if result.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// ClearFolder detaches every bookmark from folderID and returns how many changed.
func (r *bookmarkRepository) ClearFolder(ctx context.Context, folderID primitive.ObjectID) (_ int64, err error) {
	defer utils.ObserveQuery("bookmark", "clearFolder", &err)()

	result, err := r.collection().UpdateMany(ctx,
		bson.M{"folder_id": folderID},
		bson.M{"$set": bson.M{"folder_id": nil, "updated": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear folder references: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *bookmarkRepository) FindIDsByUser(ctx context.Context, userID primitive.ObjectID) (_ []primitive.ObjectID, err error) {
	defer utils.ObserveQuery("bookmark", "findIdsByUser", &err)()

	cursor, err := r.collection().Find(ctx, bson.M{"user_id": userID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookmark ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err = cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding bookmark id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *bookmarkRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (_ int64, err error) {
	defer utils.ObserveQuery("bookmark", "deleteByUser", &err)()

	result, err := r.collection().DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookmarks: %w", err)
	}
	return result.DeletedCount, nil
}
