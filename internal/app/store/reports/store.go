// internal/app/store/reports/store.go
package reportstore

import (
	"context"
	"errors"

	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("reports")}
}

// EnsureIndexes creates the listing index and the partial unique index that
// allows one pending report per reporter and post.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_reports_created"),
		},
		{
			Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "reporter_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_reports_pending_post_reporter").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.ReportPending)}),
		},
	})
	return err
}

// Create inserts a pending report. When the reporter already has a pending
// report on the same post, that report is returned with created=false.
func (s *Store) Create(ctx context.Context, r models.Report) (out models.Report, created bool, err error) {
	r.ID = primitive.NewObjectID()
	r.Status = models.ReportPending
	r.ResolvedAt = nil
	r.ResolvedBy = nil
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if !wafflemongo.IsDup(err) {
			return models.Report{}, false, err
		}
		var existing models.Report
		ferr := s.c.FindOne(ctx, bson.M{
			"post_id":     r.PostID,
			"reporter_id": r.ReporterID,
			"status":      models.ReportPending,
		}).Decode(&existing)
		if ferr != nil {
			return models.Report{}, false, ferr
		}
		return existing, false, nil
	}
	return r, true, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	return retry.Read(ctx, func() (*models.Report, error) {
		var r models.Report
		if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
			return nil, err
		}
		return &r, nil
	})
}

// List returns reports newest first. An empty status returns every report.
func (s *Store) List(ctx context.Context, status models.ReportStatus, limit int64) ([]models.Report, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return retry.Read(ctx, func() ([]models.Report, error) {
		cur, err := s.c.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		out := []models.Report{}
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Resolve moves a pending report to resolved. changed is false when the
// report was already resolved; the stored report is returned either way.
// Returns mongo.ErrNoDocuments when the report does not exist.
func (s *Store) Resolve(ctx context.Context, id, by primitive.ObjectID, at int64) (r *models.Report, changed bool, err error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out models.Report
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.ReportPending},
		bson.M{"$set": bson.M{
			"status":      models.ReportResolved,
			"resolved_by": by,
			"resolved_at": at,
		}},
		opts,
	).Decode(&out)
	if err == nil {
		return &out, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
