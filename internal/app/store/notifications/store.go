// internal/app/store/notifications/store.go
package notificationstore

import (
	"context"

	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit caps an inbox read.
const DefaultLimit = 200

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("idx_notifications_user_created"),
	})
	return err
}

// CreateMany inserts one notification per entry and returns them with IDs.
func (s *Store) CreateMany(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	if len(ns) == 0 {
		return ns, nil
	}
	docs := make([]any, len(ns))
	for i := range ns {
		ns[i].ID = primitive.NewObjectID()
		ns[i].Read = false
		docs[i] = ns[i]
	}
	if _, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return nil, err
	}
	return ns, nil
}

// ListForUser returns a user's inbox newest first.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	return retry.Read(ctx, func() ([]models.Notification, error) {
		cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		out := []models.Notification{}
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// MarkRead sets read=true on a notification owned by userID.
// Returns mongo.ErrNoDocuments when no such notification belongs to the user.
func (s *Store) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ClearForUser deletes a user's whole inbox.
func (s *Store) ClearForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
