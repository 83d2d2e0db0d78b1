// internal/domain/models/notification.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Notification is a per-user inbox item.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	CreatedAt int64              `bson:"created_at" json:"createdAt"`
	Read      bool               `bson:"read" json:"read"`
}
