package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTP is a one-time code mailed to a user. Codes never leave the server in a
// response, so the type has no JSON form.
type OTP struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	OTPCode   string             `bson:"otp_code"`
	Purpose   string             `bson:"purpose"`
	ExpiresAt time.Time          `bson:"expires_at"`
	IsUsed    bool               `bson:"is_used"`
	UsedAt    *time.Time         `bson:"used_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}
