package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	listLimit   = 200
	maxTitleLen = 120
	maxBodyLen  = 2000
)

// Repo is the inbox persistence. *notificationstore.Store satisfies it.
type Repo interface {
	CreateMany(ctx context.Context, ns []models.Notification) ([]models.Notification, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	ClearForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Service stores inbox items and announces each one on the recipient's
// notify subject for live delivery.
type Service struct {
	Store Repo
	Bus   events.Bus
	Now   func() time.Time
	Log   *zap.Logger
}

// Notify creates one unread item per recipient.
func (s *Service) Notify(ctx context.Context, to []primitive.ObjectID, title, body string) error {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" {
		return apperr.Validation("title is required")
	}
	if len(title) > maxTitleLen || len(body) > maxBodyLen {
		return apperr.Validation("title or body too long")
	}
	if len(to) == 0 {
		return nil
	}
	now := models.NowMillis()
	if s.Now != nil {
		now = models.Millis(s.Now())
	}
	items := make([]models.Notification, 0, len(to))
	for _, uid := range to {
		items = append(items, models.Notification{UserID: uid, Title: title, Body: body, CreatedAt: now})
	}
	saved, err := s.Store.CreateMany(ctx, items)
	if err != nil {
		return storeErr(err)
	}
	if s.Bus == nil {
		return nil
	}
	for _, n := range saved {
		if err := s.Bus.Publish(ctx, events.NotifySubject(n.UserID.Hex()), n); err != nil && s.Log != nil {
			s.Log.Warn("notification publish failed", zap.String("user_id", n.UserID.Hex()), zap.Error(err))
		}
	}
	return nil
}

// List returns the viewer's inbox, newest first.
func (s *Service) List(ctx context.Context, viewer *auth.Identity) ([]models.Notification, error) {
	if viewer == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	ns, err := s.Store.ListForUser(ctx, viewer.UID, listLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	return ns, nil
}

// MarkRead marks one of the viewer's items read. Items of other users are
// reported as not found.
func (s *Service) MarkRead(ctx context.Context, viewer *auth.Identity, id primitive.ObjectID) error {
	if viewer == nil {
		return apperr.Unauthorized("authentication required")
	}
	if err := s.Store.MarkRead(ctx, id, viewer.UID); err != nil {
		return storeErr(err)
	}
	return nil
}

// Clear deletes the viewer's whole inbox and returns how many items went.
func (s *Service) Clear(ctx context.Context, viewer *auth.Identity) (int64, error) {
	if viewer == nil {
		return 0, apperr.Unauthorized("authentication required")
	}
	n, err := s.Store.ClearForUser(ctx, viewer.UID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("notification not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}
