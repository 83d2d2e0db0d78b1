// internal/domain/models/message.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// DefaultRoom is the only chat room the application exposes.
const DefaultRoom = "default-room"

// Message is an append-only chat entry in a room.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID     string             `bson:"room_id" json:"roomId"`
	SenderID   primitive.ObjectID `bson:"sender_id" json:"senderId"`
	SenderName string             `bson:"sender_name" json:"senderName"`
	Text       string             `bson:"text" json:"text"`
	FileURL    string             `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	FileName   string             `bson:"file_name,omitempty" json:"fileName,omitempty"`
	CreatedAt  int64              `bson:"created_at" json:"createdAt"`
}
