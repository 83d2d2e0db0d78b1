// internal/app/features/account/handler.go
package account

import (
	"context"
	"errors"
	"time"

	accountstore "github.com/dalemusser/alumnihub/internal/app/store/accounts"
	tokenstore "github.com/dalemusser/alumnihub/internal/app/store/tokens"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/mailer"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AccountRepo stores credentials. *accountstore.Store satisfies it.
type AccountRepo interface {
	Create(ctx context.Context, email, password string, now int64) (models.Account, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, bool, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, password string, now int64) error
	MarkVerified(ctx context.Context, id primitive.ObjectID, now int64) error
}

// ProfileRepo stores the profile created alongside each account.
type ProfileRepo interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Create(ctx context.Context, u models.User, now int64) (models.User, error)
}

// TokenRepo stores one-time reset and verification tokens.
type TokenRepo interface {
	Create(ctx context.Context, purpose tokenstore.Purpose, userID primitive.ObjectID, email string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, purpose tokenstore.Purpose, raw string) (*tokenstore.Token, error)
}

// Config holds the link settings for outgoing account email.
type Config struct {
	BaseURL   string // e.g. "https://alumnihub.example.edu"; links are BaseURL+"/reset?token=..."
	SiteName  string
	ResetTTL  time.Duration
	VerifyTTL time.Duration
}

type Handler struct {
	Accounts AccountRepo
	Users    ProfileRepo
	Tokens   TokenRepo
	Auth     *auth.Authenticator
	Limiter  *ratelimit.SigninLimiter
	Mailer   mailer.Sender
	Audit    *auditlog.Logger
	Cfg      Config
	Now      func() time.Time
	Log      *zap.Logger
}

func NewHandler(
	accounts AccountRepo,
	users ProfileRepo,
	tokens TokenRepo,
	authn *auth.Authenticator,
	limiter *ratelimit.SigninLimiter,
	mail mailer.Sender,
	audit *auditlog.Logger,
	cfg Config,
	logger *zap.Logger,
) *Handler {
	if cfg.SiteName == "" {
		cfg.SiteName = "AlumniHub"
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 24 * time.Hour
	}
	if limiter == nil {
		limiter = ratelimit.NewSigninLimiter()
	}
	return &Handler{
		Accounts: accounts,
		Users:    users,
		Tokens:   tokens,
		Auth:     authn,
		Limiter:  limiter,
		Mailer:   mail,
		Audit:    audit,
		Cfg:      cfg,
		Now:      time.Now,
		Log:      logger,
	}
}

func (h *Handler) now() int64 { return h.Now().UnixMilli() }

func storeErr(err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, accountstore.ErrDuplicateEmail), errors.Is(err, userstore.ErrDuplicateEmail):
		return apperr.Conflict("an account with this email already exists")
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("account not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}
