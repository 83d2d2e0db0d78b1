// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/objectstore"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	MaxAvatarSize = 5 << 20
	minNameLen    = 2
	maxNameLen    = 80
	maxHeadline   = 120
	maxBio        = 2000
)

// PublicProfile is what other users see. Email and suspension are omitted.
type PublicProfile struct {
	UID         string      `json:"uid"`
	DisplayName string      `json:"displayName"`
	PhotoURL    string      `json:"photoURL,omitempty"`
	Role        models.Role `json:"role"`
	Headline    string      `json:"headline,omitempty"`
	Bio         string      `json:"bio,omitempty"`
}

func public(u models.User) PublicProfile {
	return PublicProfile{
		UID:         u.ID.Hex(),
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Role:        u.EffectiveRole(),
		Headline:    u.Headline,
		Bio:         u.Bio,
	}
}

// ServeProfile handles GET /api/profile: the caller's own profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id.UID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No profile yet: report what the token proves.
		respond.OK(w, models.User{ID: id.UID, Email: id.Email, DisplayName: id.Name, Role: models.RoleStudent})
		return
	}
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	u.Role = u.EffectiveRole()
	respond.OK(w, u)
}

type profileInput struct {
	DisplayName *string `json:"displayName,omitempty"`
	Headline    *string `json:"headline,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// HandleUpdate handles PATCH /api/profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in profileInput
	if err := respond.DecodeJSON(w, r, &in, 32<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	upd, err := in.validate()
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	id, _ := auth.CurrentIdentity(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	u, err := h.Users.UpdateProfile(ctx, id.UID, upd, models.Millis(h.Now()))
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	respond.OK(w, u)
}

func (in profileInput) validate() (models.ProfileUpdate, error) {
	var upd models.ProfileUpdate
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
			return upd, apperr.Validation("display name must be %d to %d characters", minNameLen, maxNameLen)
		}
		upd.DisplayName = &name
	}
	if in.Headline != nil {
		hl := strings.TrimSpace(*in.Headline)
		if utf8.RuneCountInString(hl) > maxHeadline {
			return upd, apperr.Validation("headline must be at most %d characters", maxHeadline)
		}
		upd.Headline = &hl
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBio {
			return upd, apperr.Validation("bio must be at most %d characters", maxBio)
		}
		upd.Bio = &bio
	}
	if upd.DisplayName == nil && upd.Headline == nil && upd.Bio == nil {
		return upd, apperr.Validation("no fields to update")
	}
	return upd, nil
}

// HandleAvatar handles POST /api/profile/avatar (multipart "avatar").
func (h *Handler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+(1<<20))
	up, closeFn, err := objectstore.ReadUpload(r, "avatar", MaxAvatarSize)
	if err != nil {
		respond.Error(w, r, h.Log, apperr.Validation("%v", err))
		return
	}
	defer closeFn()
	if !up.IsImage() {
		respond.Error(w, r, h.Log, apperr.Validation("avatar must be an image"))
		return
	}

	id, _ := auth.CurrentIdentity(r)
	now := h.Now()
	key := objectstore.AvatarKey(id.UID.Hex(), up.Filename, now)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload())
	defer cancel()
	if err := h.Objects.Put(ctx, key, up.Reader, &storage.PutOptions{ContentType: up.ContentType}); err != nil {
		respond.Error(w, r, h.Log, apperr.Unavailable("avatar upload failed", err))
		return
	}
	url := h.Objects.URL(key)
	u, err := h.Users.UpdateProfile(ctx, id.UID, models.ProfileUpdate{PhotoURL: &url}, models.Millis(now))
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	respond.OK(w, u)
}

// ServeUser handles GET /api/users/{uid}.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	uid, err := params.ObjectID(r, "uid")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	respond.OK(w, public(*u))
}

type directoryPage struct {
	Users []PublicProfile `json:"users"`
	paging.Page
}

// ServeAlumni handles GET /api/alumni?q=&before=&after=, the alumni
// directory ordered by name.
func (h *Handler) ServeAlumni(w http.ResponseWriter, r *http.Request) {
	before, after := paging.FromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rows, page, err := h.Users.List(ctx, userstore.ListQuery{
		Role:   models.RoleAlumni,
		Search: strings.TrimSpace(query.Get(r, "q")),
		Before: before,
		After:  after,
	})
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	out := directoryPage{Users: make([]PublicProfile, 0, len(rows)), Page: page}
	for _, u := range rows {
		out.Users = append(out.Users, public(u))
	}
	respond.OK(w, out)
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("user not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}
