// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/alumnihub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("accounts", accountsSchema())
	ensure("posts", postsSchema())
	ensure("reports", reportsSchema())
	ensure("messages", messagesSchema())
	ensure("notifications", notificationsSchema())

	// No validators; the stores own their shape.
	ensure("auth_tokens", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func enumOf[T ~string](vals []T) bson.A {
	out := make(bson.A, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	millis   = bson.M{"bsonType": bson.A{"long", "int"}}
)

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "display_name", "created_at"},
			"properties": bson.M{
				"email":        bson.M{"bsonType": "string"},
				"display_name": nonBlank,
				"role":         bson.M{"enum": enumOf(models.AllRoles)},
				"suspended":    bson.M{"bsonType": "bool"},
				"created_at":   millis,
				"updated_at":   millis,
			},
		},
	}
}

func accountsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "password_hash"},
			"properties": bson.M{
				"email":          nonBlank,
				"email_ci":       nonBlank,
				"password_hash":  nonBlank,
				"email_verified": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func postsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "content", "type", "author_id", "created_at", "updated_at", "views"},
			"properties": bson.M{
				"title":        nonBlank,
				"content":      nonBlank,
				"type":         bson.M{"enum": enumOf(models.PostTypes)},
				"author_id":    bson.M{"bsonType": "objectId"},
				"tags":         bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"created_at":   millis,
				"updated_at":   millis,
				"scheduled_at": millis,
				"expires_at":   millis,
				"draft":        bson.M{"bsonType": "bool"},
				"views":        bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"approved":     bson.M{"bsonType": "bool"},
			},
		},
	}
}

func reportsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"post_id", "reporter_id", "reason", "status", "created_at"},
			"properties": bson.M{
				"post_id":     bson.M{"bsonType": "objectId"},
				"reporter_id": bson.M{"bsonType": "objectId"},
				"reason":      bson.M{"bsonType": "string"},
				"status":      bson.M{"enum": bson.A{string(models.ReportPending), string(models.ReportResolved)}},
				"created_at":  millis,
				"resolved_by": bson.M{"bsonType": "objectId"},
				"resolved_at": millis,
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"room_id", "sender_id", "sender_name", "created_at"},
			"properties": bson.M{
				"room_id":     nonBlank,
				"sender_id":   bson.M{"bsonType": "objectId"},
				"sender_name": bson.M{"bsonType": "string"},
				"text":        bson.M{"bsonType": "string", "maxLength": 4000},
				"created_at":  millis,
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "title", "created_at", "read"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"title":      nonBlank,
				"body":       bson.M{"bsonType": "string"},
				"created_at": millis,
				"read":       bson.M{"bsonType": "bool"},
			},
		},
	}
}
