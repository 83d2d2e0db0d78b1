// internal/app/features/posts/handler.go
package posts

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

const maxBody = 256 << 10

// Handler serves the post and report endpoints.
type Handler struct {
	Svc *Service
	Log *zap.Logger
}

// NewHandler constructs a posts Handler around svc.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// ServeFeed handles GET /api/feed?type=.
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Feed(r.Context(), query.Get(r, "type"))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// ServeList handles GET /api/posts.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.List(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// ServeMine handles GET /api/posts/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.Mine(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// ServeGet handles GET /api/posts/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	postID, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.Get(r.Context(), id, postID)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// HandleCreate handles POST /api/posts.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := respond.DecodeJSON(w, r, &in, maxBody); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.Create(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, out)
}

// HandleUpdate handles PATCH /api/posts/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	postID, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var in PatchInput
	if err := respond.DecodeJSON(w, r, &in, maxBody); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.Update(r.Context(), id, postID, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// HandleDelete handles DELETE /api/posts/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	postID, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	if err := h.Svc.Delete(r.Context(), id, postID); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w)
}

// HandleView handles POST /api/posts/{id}/view.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	postID, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	n, err := h.Svc.View(r.Context(), id, postID)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]int64{"views": n})
}

type reportInput struct {
	PostID string `json:"postId"`
	Reason string `json:"reason"`
}

// HandleReport handles POST /api/reports. A repeated pending report returns
// 200 with the existing report instead of 201.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var in reportInput
	if err := respond.DecodeJSON(w, r, &in, maxBody); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	postID, err := parseHex(in.PostID)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	rep, created, err := h.Svc.Report(r.Context(), id, postID, in.Reason)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if created {
		respond.Created(w, rep)
		return
	}
	respond.OK(w, rep)
}
