package userstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateEmail is returned when a profile already uses the email.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_users_email").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_name"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_role_name"),
		},
	})
	return err
}

// GetByID loads a profile by uid.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return retry.Read(ctx, func() (*models.User, error) {
		var u models.User
		if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
			return nil, err
		}
		return &u, nil
	})
}

// GetByIDs loads the profiles that exist among ids, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return retry.Read(ctx, func() ([]models.User, error) {
		cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		var out []models.User
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Create inserts the profile for a new account. u.ID should be the account
// id; a zero id is replaced with a fresh one.
func (s *Store) Create(ctx context.Context, u models.User, now int64) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Role = models.ParseRole(string(u.Role))
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile applies the self-editable fields and returns the stored profile.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.ProfileUpdate, now int64) (*models.User, error) {
	set := bson.M{"updated_at": now}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		set["display_name"] = name
		set["display_name_ci"] = text.Fold(name)
	}
	if upd.Headline != nil {
		set["headline"] = strings.TrimSpace(*upd.Headline)
	}
	if upd.Bio != nil {
		set["bio"] = strings.TrimSpace(*upd.Bio)
	}
	if upd.PhotoURL != nil {
		set["photo_url"] = *upd.PhotoURL
	}
	return s.update(ctx, id, set)
}

// AdminUpdate changes role and suspension. Nil fields are left untouched.
func (s *Store) AdminUpdate(ctx context.Context, id primitive.ObjectID, role *models.Role, suspended *bool, now int64) (*models.User, error) {
	set := bson.M{"updated_at": now}
	if role != nil {
		set["role"] = *role
	}
	if suspended != nil {
		set["suspended"] = *suspended
	}
	return s.update(ctx, id, set)
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListQuery selects a page of profiles ordered by folded display name.
type ListQuery struct {
	Role   models.Role // empty means every role
	Search string      // prefix of the display name, folded
	Before string
	After  string
}

// List returns one keyset page of profiles.
func (s *Store) List(ctx context.Context, q ListQuery) ([]models.User, paging.Page, error) {
	filter := bson.M{}
	if q.Role != "" {
		filter["role"] = q.Role
	}
	if q.Search != "" {
		filter["display_name_ci"] = bson.M{"$regex": "^" + regexpQuote(text.Fold(q.Search))}
	}

	cfg := paging.ConfigureKeyset(q.Before, q.After)
	if w := cfg.KeysetWindow("display_name_ci"); w != nil {
		filter = bson.M{"$and": bson.A{filter, w}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "display_name_ci")

	rows, err := retry.Read(ctx, func() ([]models.User, error) {
		cur, err := s.c.Find(ctx, filter, find)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		out := []models.User{}
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, paging.Page{}, err
	}

	res := paging.TrimPage(&rows, q.Before, q.After)
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}
	page := paging.NewPage(rows, res,
		func(u models.User) string { return u.DisplayNameCI },
		func(u models.User) primitive.ObjectID { return u.ID },
	)
	return rows, page, nil
}

// IDs returns every profile id, optionally narrowed to one role.
// Used to fan out broadcast notifications.
func (s *Store) IDs(ctx context.Context, role models.Role) ([]primitive.ObjectID, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	return retry.Read(ctx, func() ([]primitive.ObjectID, error) {
		cur, err := s.c.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		var ids []primitive.ObjectID
		for cur.Next(ctx) {
			var row struct {
				ID primitive.ObjectID `bson:"_id"`
			}
			if err := cur.Decode(&row); err != nil {
				return nil, err
			}
			ids = append(ids, row.ID)
		}
		return ids, cur.Err()
	})
}

func regexpQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
