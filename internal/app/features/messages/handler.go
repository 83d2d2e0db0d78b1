// internal/app/features/messages/handler.go
package messages

import (
	"context"
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/live"
	"github.com/dalemusser/alumnihub/internal/app/system/objectstore"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the chat room endpoints.
type Handler struct {
	Svc  *Service
	Live *live.Streamer
	Log  *zap.Logger
}

func NewHandler(svc *Service, streamer *live.Streamer, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Live: streamer, Log: logger}
}

// ServeHistory handles GET /api/rooms/{room}/messages.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.History(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, out)
}

type sendInput struct {
	Text string `json:"text"`
}

// HandleSend handles POST /api/rooms/{room}/messages.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var in sendInput
	if err := respond.DecodeJSON(w, r, &in, 64<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id, _ := auth.CurrentIdentity(r)
	m, err := h.Svc.Send(r.Context(), id, chi.URLParam(r, "room"), in.Text)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, m)
}

// HandleAttach handles POST /api/rooms/{room}/attachments (multipart "file",
// optional "text").
func (h *Handler) HandleAttach(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := CheckRoom(room); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxAttachmentSize+(1<<20))
	up, closeFn, err := objectstore.ReadUpload(r, "file", MaxAttachmentSize)
	if err != nil {
		respond.Error(w, r, h.Log, apperr.Validation("%v", err))
		return
	}
	defer closeFn()

	id, _ := auth.CurrentIdentity(r)
	m, err := h.Svc.Attach(r.Context(), id, room, r.FormValue("text"), up)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, m)
}

// ServeLive handles GET /api/rooms/{room}/live.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := CheckRoom(room); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Live.Serve(w, r, events.ChatSubject(room), func(ctx context.Context) ([]live.Item, error) {
		ms, err := h.Svc.History(ctx, room)
		if err != nil {
			return nil, err
		}
		items := make([]live.Item, len(ms))
		for i, m := range ms {
			items[i] = live.Item{ID: m.ID.Hex(), Value: m}
		}
		return items, nil
	})
}
