// internal/domain/models/account.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Account holds the credentials the identity layer verifies.
// It is kept apart from User so profile reads never carry a password hash.
type Account struct {
	ID            primitive.ObjectID `bson:"_id" json:"uid"`
	Email         string             `bson:"email" json:"email"`
	EmailCI       string             `bson:"email_ci" json:"-"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	EmailVerified bool               `bson:"email_verified" json:"emailVerified"`
	CreatedAt     int64              `bson:"created_at" json:"createdAt"`
	UpdatedAt     int64              `bson:"updated_at" json:"updatedAt"`
}
