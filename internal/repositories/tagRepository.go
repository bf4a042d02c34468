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

type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	FindByID(ctx context.Context, tagID primitive.ObjectID) (*models.Tag, error)
	FindByIDs(ctx context.Context, tagIDs []primitive.ObjectID) ([]models.Tag, error)
	ListWithCounts(ctx context.Context, userID primitive.ObjectID) ([]models.TagListItem, error)
}

type tagRepository struct {
	db database.Service
}

func NewTagRepository(db database.Service) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) collection() *mongo.Collection {
	return r.db.Database().Collection("tags")
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) (_ *models.Tag, err error) {
	defer utils.ObserveQuery("tag", "create", &err)()

	if tag.ID.IsZero() {
		tag.ID = primitive.NewObjectID()
	}
	if _, err = r.collection().InsertOne(ctx, tag); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("tag %q: %w", tag.Title, utils.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	return tag, nil
}

func (r *tagRepository) FindByID(ctx context.Context, tagID primitive.ObjectID) (_ *models.Tag, err error) {
	defer utils.ObserveQuery("tag", "findById", &err)()

	var tag models.Tag
	if err = r.collection().FindOne(ctx, bson.M{"_id": tagID}).Decode(&tag); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	return &tag, nil
}

func (r *tagRepository) FindByIDs(ctx context.Context, tagIDs []primitive.ObjectID) (_ []models.Tag, err error) {
	defer utils.ObserveQuery("tag", "findByIds", &err)()

	tags := []models.Tag{}
	if len(tagIDs) == 0 {
		return tags, nil
	}
	cursor, err := r.collection().Find(ctx, bson.M{"_id": bson.M{"$in": tagIDs}}, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tags: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("error decoding tags: %w", err)
	}
	return tags, nil
}

// ListWithCounts returns every tag. bookmarks_qty counts only userID's bookmarks,
// archived ones included.
func (r *tagRepository) ListWithCounts(ctx context.Context, userID primitive.ObjectID) (_ []models.TagListItem, err error) {
	defer utils.ObserveQuery("tag", "listWithCounts", &err)()

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": "bookmarks",
			"let":  bson.M{"tid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"user_id": userID}},
				bson.M{"$match": bson.M{"$expr": bson.M{
					"$in": bson.A{"$$tid", bson.M{"$ifNull": bson.A{"$tag_ids", bson.A{}}}},
				}}},
				bson.M{"$count": "n"},
			},
			"as": "counts",
		}}},
		{{Key: "$project", Value: bson.M{
			"title":         1,
			"bookmarks_qty": bson.M{"$ifNull": bson.A{bson.M{"$first": "$counts.n"}, 0}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "title", Value: 1}}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer cursor.Close(ctx)

	tags := []models.TagListItem{}
	if err = cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("error decoding tags: %w", err)
	}
	return tags, nil
}
