// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	accountstore "github.com/dalemusser/alumnihub/internal/app/store/accounts"
	auditstore "github.com/dalemusser/alumnihub/internal/app/store/audit"
	messagestore "github.com/dalemusser/alumnihub/internal/app/store/messages"
	notificationstore "github.com/dalemusser/alumnihub/internal/app/store/notifications"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	reportstore "github.com/dalemusser/alumnihub/internal/app/store/reports"
	tokenstore "github.com/dalemusser/alumnihub/internal/app/store/tokens"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureSchema applies collection validators and creates every store's
// indexes. Both steps are idempotent and run on each start.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("collection validators failed", zap.Error(err))
		return fmt.Errorf("ensure validators: %w", err)
	}
	if err := ensureIndexes(ctx, db); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}
	logger.Info("schema ready", zap.String("database", db.Name()))
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	stores := []struct {
		name string
		idx  indexer
	}{
		{"accounts", accountstore.New(db)},
		{"users", userstore.New(db)},
		{"tokens", tokenstore.New(db)},
		{"posts", poststore.New(db)},
		{"reports", reportstore.New(db)},
		{"messages", messagestore.New(db)},
		{"notifications", notificationstore.New(db)},
		{"audit_events", auditstore.New(db)},
	}
	for _, s := range stores {
		if err := s.idx.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", s.name, err)
		}
	}
	return nil
}
