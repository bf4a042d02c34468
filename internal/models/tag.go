package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Tag struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title string             `json:"title" bson:"title"`
}

type TagListItem struct {
	ID           primitive.ObjectID `json:"id" bson:"_id"`
	Title        string             `json:"title" bson:"title"`
	BookmarksQty int64              `json:"bookmarks_qty" bson:"bookmarks_qty"`
}

type CreateTagRequest struct {
	Title string `json:"title" validate:"required,max=64"`
}
