// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/live"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler serves the caller's inbox.
type Handler struct {
	Svc  *Service
	Live *live.Streamer
	Log  *zap.Logger
}

func NewHandler(svc *Service, streamer *live.Streamer, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Live: streamer, Log: logger}
}

// ServeList handles GET /api/notifications.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	out, err := h.Svc.List(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

// HandleRead handles POST /api/notifications/{id}/read.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	nid, err := params.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	if err := h.Svc.MarkRead(r.Context(), id, nid); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w)
}

// HandleClear handles DELETE /api/notifications.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	n, err := h.Svc.Clear(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]int64{"cleared": n})
}

// ServeLive handles GET /api/notifications/live: the inbox snapshot, then
// each new item as it is created.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)
	h.Live.Serve(w, r, events.NotifySubject(id.UID.Hex()), func(ctx context.Context) ([]live.Item, error) {
		ns, err := h.Svc.List(ctx, id)
		if err != nil {
			return nil, err
		}
		items := make([]live.Item, len(ns))
		for i, n := range ns {
			items[i] = live.Item{ID: n.ID.Hex(), Value: n}
		}
		return items, nil
	})
}
