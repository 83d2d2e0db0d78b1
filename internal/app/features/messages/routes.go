// internal/app/features/messages/routes.go
package messages

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the room endpoints. Mount under /api/rooms.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireActive)

		pr.Get("/{room}/messages", h.ServeHistory)
		pr.Get("/{room}/live", h.ServeLive)
		pr.Post("/{room}/messages", h.HandleSend)
		pr.Post("/{room}/attachments", h.HandleAttach)
	})
	return r
}
