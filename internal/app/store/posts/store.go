// internal/app/store/posts/store.go
package poststore

import (
	"context"

	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

// EnsureIndexes creates the feed, author and type indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_posts_created"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_posts_author_created"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_posts_type_created"),
		},
	})
	return err
}

// Create inserts p as given and returns it with its new ID.
// Callers stamp timestamps and ownership.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
	p.ID = primitive.NewObjectID()
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// GetByID returns mongo.ErrNoDocuments when the post does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return retry.Read(ctx, func() (*models.Post, error) {
		var p models.Post
		if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

// FeedQuery narrows a feed read. The store only pushes down what Mongo can
// evaluate; status rules are re-applied by the caller against the same now.
type FeedQuery struct {
	Now          int64
	Type         models.PostType // empty means every type
	ApprovedOnly bool
	Limit        int64
}

// Published returns posts that are not drafts, already past scheduled_at and
// not yet at expires_at, newest first.
func (s *Store) Published(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	filter := bson.M{
		"draft": bson.M{"$ne": true},
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"expires_at": bson.M{"$exists": false}},
				bson.M{"expires_at": nil},
				bson.M{"expires_at": bson.M{"$gt": q.Now}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"scheduled_at": bson.M{"$exists": false}},
				bson.M{"scheduled_at": nil},
				bson.M{"scheduled_at": bson.M{"$lte": q.Now}},
			}},
		},
	}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.ApprovedOnly {
		filter["approved"] = true
	}
	return s.find(ctx, filter, q.Limit)
}

// All returns every post newest first, regardless of status.
func (s *Store) All(ctx context.Context, limit int64) ([]models.Post, error) {
	return s.find(ctx, bson.M{}, limit)
}

// ByAuthor returns every post by authorID newest first, regardless of status.
func (s *Store) ByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	return s.find(ctx, bson.M{"author_id": authorID}, 0)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return retry.Read(ctx, func() ([]models.Post, error) {
		cur, err := s.c.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		out := []models.Post{}
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Update applies upd and stamps updatedAt, returning the stored document.
// Returns mongo.ErrNoDocuments when the post does not exist.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd models.PostUpdate, updatedAt int64) (*models.Post, error) {
	set := bson.M{"updated_at": updatedAt}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Type != nil {
		set["type"] = *upd.Type
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	if upd.ScheduledAt != nil {
		set["scheduled_at"] = *upd.ScheduledAt
	}
	if upd.ExpiresAt != nil {
		set["expires_at"] = *upd.ExpiresAt
	}
	if upd.Draft != nil {
		set["draft"] = *upd.Draft
	}
	return s.findAndUpdate(ctx, id, bson.M{"$set": set})
}

// Approve sets approved=true. Approving twice is not an error.
func (s *Store) Approve(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return s.findAndUpdate(ctx, id, bson.M{"$set": bson.M{"approved": true}})
}

// IncrementViews atomically adds one to views and returns the new count.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error) {
	p, err := s.findAndUpdate(ctx, id, bson.M{"$inc": bson.M{"views": int64(1)}})
	if err != nil {
		return 0, err
	}
	return p.Views, nil
}

func (s *Store) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Post
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes the post. Reports that reference it are left in place.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
