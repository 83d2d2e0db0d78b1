package userstore

import (
	"context"

	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.ProfileFetcher to load role and suspension on
// each request.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates a ProfileFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// FetchProfile returns mongo.ErrNoDocuments when the uid has no profile.
// Driver errors are returned as-is so the caller can fail closed.
func (f *Fetcher) FetchProfile(ctx context.Context, uid primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	proj := options.FindOne().SetProjection(bson.M{
		"_id":          1,
		"email":        1,
		"display_name": 1,
		"photo_url":    1,
		"role":         1,
		"suspended":    1,
	})
	var u models.User
	if err := f.users.FindOne(ctx, bson.M{"_id": uid}, proj).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}
