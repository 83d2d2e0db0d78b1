// internal/domain/models/user.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User is the application profile attached to an identity.
// ID is the identity subject id (the same value as Account.ID).
type User struct {
	ID            primitive.ObjectID `bson:"_id" json:"uid"`
	Email         string             `bson:"email" json:"email"`
	DisplayName   string             `bson:"display_name" json:"displayName"`
	DisplayNameCI string             `bson:"display_name_ci" json:"-"` // folded, for sort and keyset paging
	PhotoURL      string             `bson:"photo_url,omitempty" json:"photoURL,omitempty"`
	Role          Role               `bson:"role,omitempty" json:"role"`
	Headline      string             `bson:"headline,omitempty" json:"headline,omitempty"`
	Bio           string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Suspended     bool               `bson:"suspended" json:"suspended"`
	CreatedAt     int64              `bson:"created_at" json:"createdAt"`
	UpdatedAt     int64              `bson:"updated_at" json:"updatedAt"`
}

// EffectiveRole returns the profile role, defaulting to student when unset.
func (u User) EffectiveRole() Role {
	return ParseRole(string(u.Role))
}

// ProfileUpdate carries the self-editable profile fields.
type ProfileUpdate struct {
	DisplayName *string
	Headline    *string
	Bio         *string
	PhotoURL    *string
}
