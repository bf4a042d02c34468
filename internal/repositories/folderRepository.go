package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bkmrks/internal/database"
	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	FindByID(ctx context.Context, folderID primitive.ObjectID) (*models.Folder, error)
	FindByTitle(ctx context.Context, userID primitive.ObjectID, title string) (*models.Folder, error)
	ListWithCounts(ctx context.Context, userID primitive.ObjectID) ([]models.FolderListItem, error)
	UpdateTitle(ctx context.Context, folderID primitive.ObjectID, title string) (*models.Folder, error)
	Delete(ctx context.Context, folderID primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type folderRepository struct {
	db database.Service
}

func NewFolderRepository(db database.Service) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) collection() *mongo.Collection {
	return r.db.Database().Collection("folders")
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) (_ *models.Folder, err error) {
	defer utils.ObserveQuery("folder", "create", &err)()

	if folder.ID.IsZero() {
		folder.ID = primitive.NewObjectID()
	}
	if _, err = r.collection().InsertOne(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

func (r *folderRepository) FindByID(ctx context.Context, folderID primitive.ObjectID) (_ *models.Folder, err error) {
	defer utils.ObserveQuery("folder", "findById", &err)()

	var folder models.Folder
	if err = r.collection().FindOne(ctx, bson.M{"_id": folderID}).Decode(&folder); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find folder: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) FindByTitle(ctx context.Context, userID primitive.ObjectID, title string) (_ *models.Folder, err error) {
	defer utils.ObserveQuery("folder", "findByTitle", &err)()

	var folder models.Folder
	if err = r.collection().FindOne(ctx, bson.M{"user_id": userID, "title": title}).Decode(&folder); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find folder: %w", err)
	}
	return &folder, nil
}

// ListWithCounts returns the owner's folders ordered by title, each annotated
// with the number of non-archived bookmarks it holds.
func (r *folderRepository) ListWithCounts(ctx context.Context, userID primitive.ObjectID) (_ []models.FolderListItem, err error) {
	defer utils.ObserveQuery("folder", "listWithCounts", &err)()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "bookmarks",
			"let":  bson.M{"fid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$folder_id", "$$fid"}},
					bson.M{"$ne": bson.A{"$is_archived", true}},
				}}}},
				bson.M{"$count": "n"},
			},
			"as": "counts",
		}}},
		{{Key: "$project", Value: bson.M{
			"user_id":       1,
			"title":         1,
			"bookmarks_qty": bson.M{"$ifNull": bson.A{bson.M{"$first": "$counts.n"}, 0}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer cursor.Close(ctx)

	folders := []models.FolderListItem{}
	if err = cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("error decoding folders: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) UpdateTitle(ctx context.Context, folderID primitive.ObjectID, title string) (_ *models.Folder, err error) {
	defer utils.ObserveQuery("folder", "updateTitle", &err)()

	var folder models.Folder
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.collection().FindOneAndUpdate(ctx, bson.M{"_id": folderID}, bson.M{"$set": bson.M{"title": title}}, opts).Decode(&folder)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) Delete(ctx context.Context, folderID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("folder", "delete", &err)()

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": folderID})
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if result.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *folderRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (_ int64, err error) {
	defer utils.ObserveQuery("folder", "deleteByUser", &err)()

	result, err := r.collection().DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete folders: %w", err)
	}
	return result.DeletedCount, nil
}
