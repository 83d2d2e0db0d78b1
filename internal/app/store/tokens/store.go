// internal/app/store/tokens/store.go
package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Purpose separates reset links from verification links.
type Purpose string

const (
	PurposeReset       Purpose = "reset"
	PurposeVerifyEmail Purpose = "verify_email"
)

const (
	// SecretLength is the random part of a token in bytes (32 bytes = 64 hex chars).
	SecretLength = 32
	// BcryptCost for hashing token secrets.
	BcryptCost = 10
	// DefaultExpiry applies when a caller passes a non-positive ttl.
	DefaultExpiry = time.Hour
)

// ErrNotFound is returned when a token is unknown, expired, already used or
// does not match.
var ErrNotFound = errors.New("token not found or expired")

// Token is a one-time link token. Only the bcrypt hash of the secret is stored.
type Token struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Purpose    Purpose            `bson:"purpose"`
	UserID     primitive.ObjectID `bson:"user_id"`
	Email      string             `bson:"email"`
	SecretHash string             `bson:"secret_hash"`
	ExpiresAt  time.Time          `bson:"expires_at"` // TTL index field
	CreatedAt  time.Time          `bson:"created_at"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("auth_tokens")}
}

// EnsureIndexes creates the TTL index for auto-cleanup and the owner index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_tokens_expires_ttl").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().SetName("idx_tokens_user_purpose"),
		},
	})
	return err
}

// Create issues a token for userID and replaces any earlier token with the
// same purpose. The returned string is what goes into the emailed link.
func (s *Store) Create(ctx context.Context, purpose Purpose, userID primitive.ObjectID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	secret, err := generateSecret()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", err
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "purpose": purpose}); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	t := Token{
		ID:         primitive.NewObjectID(),
		Purpose:    purpose,
		UserID:     userID,
		Email:      email,
		SecretHash: string(hash),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return "", err
	}
	return t.ID.Hex() + "." + secret, nil
}

// Consume validates raw and deletes the record so it cannot be used twice.
func (s *Store) Consume(ctx context.Context, purpose Purpose, raw string) (*Token, error) {
	idHex, secret, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok || secret == "" {
		return nil, ErrNotFound
	}
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, ErrNotFound
	}

	var t Token
	err = s.c.FindOne(ctx, bson.M{
		"_id":        id,
		"purpose":    purpose,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)); err != nil {
		return nil, ErrNotFound
	}

	// A concurrent consumer that deleted first wins.
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": t.ID})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		return nil, ErrNotFound
	}
	return &t, nil
}

// DeleteByUser removes every token for a user.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

func generateSecret() (string, error) {
	b := make([]byte, SecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
