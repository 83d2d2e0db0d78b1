// internal/app/features/posts/routes.go
package posts

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the post and report endpoints. Mount under /api.
// Reads are public; writes require a signed-in, non-suspended caller.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/feed", h.ServeFeed)
	r.Get("/posts", h.ServeList)
	r.Get("/posts/{id}", h.ServeGet)
	r.Post("/posts/{id}/view", h.HandleView)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireActive)

		pr.Get("/posts/mine", h.ServeMine)
		pr.Post("/posts", h.HandleCreate)
		pr.Patch("/posts/{id}", h.HandleUpdate)
		pr.Delete("/posts/{id}", h.HandleDelete)
		pr.Post("/reports", h.HandleReport)
	})

	return r
}
