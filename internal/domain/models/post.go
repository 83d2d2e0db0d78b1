// internal/domain/models/post.go
package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostType is the closed set of feed post kinds.
type PostType string

const (
	PostJob          PostType = "job"
	PostInternship   PostType = "internship"
	PostMentorship   PostType = "mentorship"
	PostAnnouncement PostType = "announcement"
)

// PostTypes lists every post type in display order.
var PostTypes = []PostType{PostJob, PostInternship, PostMentorship, PostAnnouncement}

// ParsePostType returns the PostType for s and whether it is known.
func ParsePostType(s string) (PostType, bool) {
	t := PostType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PostTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Post is a unit of feed content.
//
// All timestamps are epoch milliseconds. ScheduledAt and ExpiresAt are
// optional; Draft and Approved default to false.
type Post struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Content     string             `bson:"content" json:"content"`
	Type        PostType           `bson:"type" json:"type"`
	AuthorID    primitive.ObjectID `bson:"author_id" json:"authorId"`
	Tags        []string           `bson:"tags" json:"tags"`
	CreatedAt   int64              `bson:"created_at" json:"createdAt"`
	UpdatedAt   int64              `bson:"updated_at" json:"updatedAt"`
	ScheduledAt *int64             `bson:"scheduled_at,omitempty" json:"scheduledAt,omitempty"`
	ExpiresAt   *int64             `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
	Draft       bool               `bson:"draft,omitempty" json:"draft,omitempty"`
	Views       int64              `bson:"views" json:"views"`
	Approved    bool               `bson:"approved,omitempty" json:"approved"`
}

// PostUpdate carries the fields a partial update may change.
// Nil pointers are left untouched.
type PostUpdate struct {
	Title       *string
	Content     *string
	Type        *PostType
	Tags        *[]string
	ScheduledAt *int64
	ExpiresAt   *int64
	Draft       *bool
}

// IsEmpty reports whether the update changes nothing.
func (u PostUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.Type == nil && u.Tags == nil &&
		u.ScheduledAt == nil && u.ExpiresAt == nil && u.Draft == nil
}
