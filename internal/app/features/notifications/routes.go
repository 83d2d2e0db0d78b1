// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the inbox endpoints. Mount under /api/notifications.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/live", h.ServeLive)
		pr.Post("/{id}/read", h.HandleRead)
		pr.Delete("/", h.HandleClear)
	})
	return r
}
