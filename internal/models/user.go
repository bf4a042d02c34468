package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username      string             `json:"username" bson:"username"`
	Email         string             `json:"email,omitempty" bson:"email,omitempty"`
	Password      string             `json:"-" bson:"password"`
	TelegramID    *string            `json:"telegram_id" bson:"telegram_id,omitempty"`
	ProfileImage  string             `json:"profile_image" bson:"profile_image"`
	DiskQuota     int                `json:"disk_quota" bson:"disk_quota"`
	DiskSpaceUsed float64            `json:"disk_space_used" bson:"-"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type Login struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserProfileUpdate struct {
	Username     Optional[string]  `json:"username"`
	Email        Optional[string]  `json:"email"`
	TelegramID   Optional[*string] `json:"telegram_id"`
	ProfileImage Optional[string]  `json:"profile_image"`
	Password     Optional[string]  `json:"password"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirm struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
