// internal/app/features/admin/users.go
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
)

type usersPage struct {
	Users []models.User `json:"users"`
	paging.Page
}

// ServeUsers handles GET /api/admin/users?role=&q=&before=&after=.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	q := userstore.ListQuery{Search: strings.TrimSpace(query.Get(r, "q"))}
	q.Before, q.After = paging.FromRequest(r)
	if role := query.Get(r, "role"); role != "" {
		if !models.IsValidRole(role) {
			respond.Error(w, r, h.Log, apperr.Validation("unknown role %q", role))
			return
		}
		q.Role = models.ParseRole(role)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	rows, page, err := h.Users.List(ctx, q)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err, "user"))
		return
	}
	for i := range rows {
		rows[i].Role = rows[i].EffectiveRole()
	}
	respond.OK(w, usersPage{Users: rows, Page: page})
}

type userPatch struct {
	Role      *string `json:"role,omitempty"`
	Suspended *bool   `json:"suspended,omitempty"`
}

// HandleUpdateUser handles PATCH /api/admin/users/{uid}. Admins cannot
// change their own role or suspend themselves.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	uid, err := params.ObjectID(r, "uid")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var in userPatch
	if err := respond.DecodeJSON(w, r, &in, 4<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if in.Role == nil && in.Suspended == nil {
		respond.Error(w, r, h.Log, apperr.Validation("role or suspended is required"))
		return
	}
	var role *models.Role
	if in.Role != nil {
		if !models.IsValidRole(*in.Role) {
			respond.Error(w, r, h.Log, apperr.Validation("unknown role %q", *in.Role))
			return
		}
		parsed := models.ParseRole(*in.Role)
		role = &parsed
	}

	actor, _ := auth.CurrentIdentity(r)
	if uid == actor.UID {
		respond.Error(w, r, h.Log, apperr.Validation("you cannot change your own role or suspension"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	before, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err, "user"))
		return
	}
	after, err := h.Users.AdminUpdate(ctx, uid, role, in.Suspended, h.Now().UnixMilli())
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err, "user"))
		return
	}

	if role != nil && before.EffectiveRole() != *role {
		h.Audit.RoleChanged(ctx, r, actor.UID, uid, string(before.EffectiveRole()), string(*role))
	}
	if in.Suspended != nil && before.Suspended != *in.Suspended {
		h.Audit.SuspensionChanged(ctx, r, actor.UID, uid, *in.Suspended)
	}
	after.Role = after.EffectiveRole()
	respond.OK(w, after)
}

func storeErr(err error, what string) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound(what + " not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}
