package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"bkmrks/internal/database"
	"bkmrks/internal/models"
	"bkmrks/internal/utils"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	FindActive(ctx context.Context, userID primitive.ObjectID, otpCode, purpose string) (*models.OTP, error)
	MarkAsUsed(ctx context.Context, otpID primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepository struct {
	db database.Service
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) collection() *mongo.Collection {
	return r.db.Database().Collection("otps")
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) (_ *models.OTP, err error) {
	defer utils.ObserveQuery("otp", "create", &err)()

	otp.ID = primitive.NewObjectID()
	otp.CreatedAt = time.Now().UTC()
	if _, err = r.collection().InsertOne(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to create otp: %w", err)
	}
	return otp, nil
}

// FindActive returns an unused, unexpired code or utils.ErrNotFound.
func (r *otpRepository) FindActive(ctx context.Context, userID primitive.ObjectID, otpCode, purpose string) (_ *models.OTP, err error) {
	defer utils.ObserveQuery("otp", "findActive", &err)()

	var otp models.OTP
	filter := bson.M{"user_id": userID, "otp_code": otpCode, "purpose": purpose, "is_used": false, "expires_at": bson.M{"$gt": time.Now().UTC()}}
	if err = r.collection().FindOne(ctx, filter).Decode(&otp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) MarkAsUsed(ctx context.Context, otpID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("otp", "markAsUsed", &err)()

	update := bson.M{"$set": bson.M{"is_used": true, "used_at": time.Now().UTC()}}
	if _, err = r.collection().UpdateOne(ctx, bson.M{"_id": otpID}, update); err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	return nil
}

func (r *otpRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("otp", "deleteByUser", &err)()

	if _, err = r.collection().DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete otps: %w", err)
	}
	return nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context) (_ int64, err error) {
	defer utils.ObserveQuery("otp", "deleteExpired", &err)()

	result, err := r.collection().DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.DeletedCount, nil
}
