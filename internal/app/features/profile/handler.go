// internal/app/features/profile/handler.go
package profile

import (
	"context"
	"time"

	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserRepo is the profile persistence. *userstore.Store satisfies it.
type UserRepo interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.ProfileUpdate, now int64) (*models.User, error)
	List(ctx context.Context, q userstore.ListQuery) ([]models.User, paging.Page, error)
}

// Handler owns the profile and directory endpoints.
type Handler struct {
	Users   UserRepo
	Objects storage.Store
	Now     func() time.Time
	Log     *zap.Logger
}

// NewHandler constructs a Handler bound to the profile store and object store.
func NewHandler(users UserRepo, objects storage.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   users,
		Objects: objects,
		Now:     time.Now,
		Log:     logger,
	}
}
