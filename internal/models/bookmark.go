package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxBookmarkTitleLength = 64
	NoTitle                = "No title set"
)

// Bookmark is the stored document. Folder and tags are references only;
// BookmarkDetail is the joined read model returned by the API.
type Bookmark struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID      primitive.ObjectID   `json:"user" bson:"user_id"`
	URL         string               `json:"url" bson:"url"`
	Title       string               `json:"title" bson:"title"`
	Description string               `json:"description" bson:"description"`
	ImageURL    string               `json:"image_url" bson:"image_url"`
	FolderID    *primitive.ObjectID  `json:"folder" bson:"folder_id"`
	TagIDs      []primitive.ObjectID `json:"tags" bson:"tag_ids"`
	IsFavorite  bool                 `json:"is_favorite" bson:"is_favorite"`
	IsRead      bool                 `json:"is_read" bson:"is_read"`
	IsArchived  bool                 `json:"is_archived" bson:"is_archived"`
	CreatedAt   time.Time            `json:"created" bson:"created"`
	UpdatedAt   time.Time            `json:"updated" bson:"updated"`
}

type BookmarkDetail struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	UserID      primitive.ObjectID `json:"user" bson:"user_id"`
	URL         string             `json:"url" bson:"url"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	ImageURL    string             `json:"image_url" bson:"image_url"`
	Folder      *Folder            `json:"folder" bson:"folder,omitempty"`
	Tags        []Tag              `json:"tags" bson:"tags"`
	Download    *Download          `json:"download" bson:"download,omitempty"`
	IsFavorite  bool               `json:"is_favorite" bson:"is_favorite"`
	IsRead      bool               `json:"is_read" bson:"is_read"`
	IsArchived  bool               `json:"is_archived" bson:"is_archived"`
	CreatedAt   time.Time          `json:"created" bson:"created"`
	UpdatedAt   time.Time          `json:"updated" bson:"updated"`
}

type CreateBookmarkRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

type TelegramUserRef struct {
	TelegramID string `json:"telegram_id" validate:"required,max=32"`
}

type TelegramBookmarkRequest struct {
	User TelegramUserRef `json:"user"`
	URL  string          `json:"url" validate:"required,http_url,max=2048"`
}

type TelegramBookmarkResponse struct {
	ID   primitive.ObjectID `json:"id"`
	User TelegramUserRef    `json:"user"`
	URL  string             `json:"url"`
}

// FolderRef and TagRef accept the nested objects the list endpoint returns;
// only the id is read.
type FolderRef struct {
	ID string `json:"id"`
}

type TagRef struct {
	ID string `json:"id"`
}

// UpdateBookmarkRequestBody is a partial update. Scalars change only when present.
// Folder and Tags are always replaced: an absent or null folder clears it and an
// absent, null or empty tag list clears every tag.
type UpdateBookmarkRequestBody struct {
	URL         Optional[string] `json:"url"`
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	ImageURL    Optional[string] `json:"image_url"`
	Folder      *FolderRef       `json:"folder"`
	Tags        []TagRef         `json:"tags"`
	IsFavorite  Optional[bool]   `json:"is_favorite"`
	IsRead      Optional[bool]   `json:"is_read"`
	IsArchived  Optional[bool]   `json:"is_archived"`
}
