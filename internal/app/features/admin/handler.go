// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/posts"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserRepo is the profile persistence the admin screens need.
type UserRepo interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	List(ctx context.Context, q userstore.ListQuery) ([]models.User, paging.Page, error)
	AdminUpdate(ctx context.Context, id primitive.ObjectID, role *models.Role, suspended *bool, now int64) (*models.User, error)
	IDs(ctx context.Context, role models.Role) ([]primitive.ObjectID, error)
}

// Moderator is the post-lifecycle side of moderation. *posts.Service satisfies it.
type Moderator interface {
	ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error)
	ResolveReport(ctx context.Context, admin *auth.Identity, reportID primitive.ObjectID) (models.Report, bool, error)
	AllPosts(ctx context.Context) ([]posts.View, error)
	Moderate(ctx context.Context, admin *auth.Identity, postID primitive.ObjectID) (posts.View, error)
}

// Notifier delivers inbox items.
type Notifier interface {
	Notify(ctx context.Context, to []primitive.ObjectID, title, body string) error
}

// Handler serves the admin panel API. Every action is written to the audit log.
type Handler struct {
	Users     UserRepo
	Moderator Moderator
	Notifier  Notifier
	Audit     *auditlog.Logger
	Now       func() time.Time
	Log       *zap.Logger
}

func NewHandler(users UserRepo, mod Moderator, notifier Notifier, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:     users,
		Moderator: mod,
		Notifier:  notifier,
		Audit:     audit,
		Now:       time.Now,
		Log:       logger,
	}
}
