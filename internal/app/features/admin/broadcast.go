// internal/app/features/admin/broadcast.go
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type broadcastInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Role  string `json:"role,omitempty"` // empty sends to everyone
}

// HandleBroadcast handles POST /api/admin/notifications: one inbox item for
// every user, or every user of one role.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var in broadcastInput
	if err := respond.DecodeJSON(w, r, &in, 16<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		respond.Error(w, r, h.Log, apperr.Validation("title is required"))
		return
	}
	var role models.Role
	if in.Role != "" {
		if !models.IsValidRole(in.Role) {
			respond.Error(w, r, h.Log, apperr.Validation("unknown role %q", in.Role))
			return
		}
		role = models.ParseRole(in.Role)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	ids, err := h.Users.IDs(ctx, role)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err, "user"))
		return
	}
	if err := h.Notifier.Notify(ctx, ids, in.Title, in.Body); err != nil {
		respond.Error(w, r, h.Log, storeErr(err, "user"))
		return
	}

	actor, _ := auth.CurrentIdentity(r)
	h.Audit.NotificationBroadcast(ctx, r, actor.UID, in.Title, len(ids))
	respond.JSON(w, http.StatusAccepted, map[string]int{"recipients": len(ids)})
}
