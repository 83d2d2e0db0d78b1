package messages

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/objectstore"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	MaxTextLen        = 4000
	MaxAttachmentSize = 10 << 20
	historyLimit      = 500
)

// Repo is the message persistence. *messagestore.Store satisfies it.
type Repo interface {
	Create(ctx context.Context, m models.Message) (models.Message, error)
	ListByRoom(ctx context.Context, room string, limit int64) ([]models.Message, error)
}

// Service appends chat messages and announces them on the room subject.
type Service struct {
	Store   Repo
	Objects storage.Store
	Bus     events.Bus
	Now     func() time.Time
	Log     *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CheckRoom rejects every room except the default one.
func CheckRoom(room string) error {
	if room != models.DefaultRoom {
		return apperr.NotFound("room not found")
	}
	return nil
}

// History returns the latest messages of room in ascending createdAt order.
func (s *Service) History(ctx context.Context, room string) ([]models.Message, error) {
	if err := CheckRoom(room); err != nil {
		return nil, err
	}
	ms, err := s.Store.ListByRoom(ctx, room, historyLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	return ms, nil
}

// Send appends a text message from viewer. The sender name is taken from
// the viewer's profile, never from input.
func (s *Service) Send(ctx context.Context, viewer *auth.Identity, room, text string) (models.Message, error) {
	if err := checkSender(viewer, room); err != nil {
		return models.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, apperr.Validation("message text is required")
	}
	if err := checkLen(text); err != nil {
		return models.Message{}, err
	}
	return s.append(ctx, viewer, room, text, "", "")
}

// Attach stores up in the object store and appends a message linking to it.
// caption may be empty.
func (s *Service) Attach(ctx context.Context, viewer *auth.Identity, room, caption string, up *objectstore.Upload) (models.Message, error) {
	if err := checkSender(viewer, room); err != nil {
		return models.Message{}, err
	}
	if up == nil {
		return models.Message{}, apperr.Validation("file is required")
	}
	if up.Size > MaxAttachmentSize {
		return models.Message{}, apperr.Validation("file must be at most 10 MB")
	}
	caption = strings.TrimSpace(caption)
	if err := checkLen(caption); err != nil {
		return models.Message{}, err
	}

	key := objectstore.AttachmentKey(room, up.Filename, s.now())
	if err := s.Objects.Put(ctx, key, up.Reader, &storage.PutOptions{ContentType: up.ContentType}); err != nil {
		return models.Message{}, apperr.Unavailable("file upload failed", err)
	}
	name := objectstore.SanitizeFilename(up.Filename)
	return s.append(ctx, viewer, room, caption, s.Objects.URL(key), name)
}

func (s *Service) append(ctx context.Context, viewer *auth.Identity, room, text, fileURL, fileName string) (models.Message, error) {
	m, err := s.Store.Create(ctx, models.Message{
		RoomID:     room,
		SenderID:   viewer.UID,
		SenderName: viewer.DisplayName(),
		Text:       text,
		FileURL:    fileURL,
		FileName:   fileName,
		CreatedAt:  models.Millis(s.now()),
	})
	if err != nil {
		return models.Message{}, storeErr(err)
	}
	if s.Bus != nil {
		if err := s.Bus.Publish(ctx, events.ChatSubject(room), m); err != nil && s.Log != nil {
			s.Log.Warn("chat publish failed", zap.String("room", room), zap.Error(err))
		}
	}
	return m, nil
}

func checkSender(viewer *auth.Identity, room string) error {
	if viewer == nil {
		return apperr.Unauthorized("authentication required")
	}
	if !authz.CanWrite(viewer) {
		return apperr.Forbidden("account is suspended")
	}
	return CheckRoom(room)
}

func checkLen(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLen {
		return apperr.Validation("message must be at most %d characters", MaxTextLen)
	}
	return nil
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("message not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}
