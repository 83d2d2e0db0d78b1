// internal/app/features/admin/moderation.go
package admin

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeReports handles GET /api/admin/reports?status=, newest first.
func (h *Handler) ServeReports(w http.ResponseWriter, r *http.Request) {
	status := models.ReportStatus(query.Get(r, "status"))
	switch status {
	case "", models.ReportPending, models.ReportResolved:
	default:
		respond.Error(w, r, h.Log, apperr.Validation("unknown status %q", status))
		return
	}
	out, err := h.Moderator.ListReports(r.Context(), status)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// HandleResolveReport handles POST /api/admin/reports/{id}/resolve.
func (h *Handler) HandleResolveReport(w http.ResponseWriter, r *http.Request) {
	id, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	actor, _ := auth.CurrentIdentity(r)
	rep, changed, err := h.Moderator.ResolveReport(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if changed {
		h.Audit.ReportResolved(r.Context(), r, actor.UID, rep.ID, rep.ReporterID)
	}
	respond.OK(w, rep)
}

// ServePosts handles GET /api/admin/posts: every post with its status.
func (h *Handler) ServePosts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Moderator.AllPosts(r.Context())
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// HandleApprovePost handles POST /api/admin/posts/{id}/approve.
func (h *Handler) HandleApprovePost(w http.ResponseWriter, r *http.Request) {
	id, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	actor, _ := auth.CurrentIdentity(r)
	v, err := h.Moderator.Moderate(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.PostApproved(r.Context(), r, actor.UID, v.ID, v.AuthorID)
	respond.OK(w, v)
}
