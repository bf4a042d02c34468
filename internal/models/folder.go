package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxFolderTitleLength = 64

type Folder struct {
	ID     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID primitive.ObjectID `json:"user" bson:"user_id"`
	Title  string             `json:"title" bson:"title"`
}

// FolderListItem carries the number of non-archived bookmarks in the folder.
type FolderListItem struct {
	ID           primitive.ObjectID `json:"id" bson:"_id"`
	UserID       primitive.ObjectID `json:"user" bson:"user_id"`
	Title        string             `json:"title" bson:"title"`
	BookmarksQty int64              `json:"bookmarks_qty" bson:"bookmarks_qty"`
}

type CreateFolderRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Title  string `json:"title" validate:"required,max=64"`
}

type UpdateFolderRequest struct {
	Title Optional[string] `json:"title"`
}
