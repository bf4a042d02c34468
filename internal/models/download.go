package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DownloadStatus string

// Wire values are kept short; the web client switches on them.
const (
	DownloadPending   DownloadStatus = "PG"
	DownloadCompleted DownloadStatus = "CD"
	DownloadFailed    DownloadStatus = "FD"
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadPending:
		return "Pending"
	case DownloadCompleted:
		return "Completed"
	case DownloadFailed:
		return "Failed"
	default:
		return string(s)
	}
}

type Download struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BookmarkID primitive.ObjectID `json:"-" bson:"bookmark_id"`
	Title      string             `json:"title" bson:"title"`
	Status     DownloadStatus     `json:"status" bson:"status"`
	File       string             `json:"file" bson:"file"`
	FileSize   int64              `json:"file_size" bson:"file_size"`
	LeaseUntil *time.Time         `json:"-" bson:"lease_until,omitempty"`
	CreatedAt  time.Time          `json:"created" bson:"created"`
	UpdatedAt  time.Time          `json:"updated" bson:"updated"`
}

type StartDownloadRequest struct {
	BookmarkID string `json:"bookmark_id" validate:"required"`
}
