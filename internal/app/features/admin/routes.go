// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin API. Mount under /api/admin.
// The role check uses the role read from the profile store, never the request.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole(models.RoleAdmin))
		pr.Use(auth.RequireActive)

		pr.Get("/users", h.ServeUsers)
		pr.Patch("/users/{uid}", h.HandleUpdateUser)

		pr.Get("/reports", h.ServeReports)
		pr.Post("/reports/{id}/resolve", h.HandleResolveReport)

		pr.Get("/posts", h.ServePosts)
		pr.Post("/posts/{id}/approve", h.HandleApprovePost)

		pr.Post("/notifications", h.HandleBroadcast)
	})

	return r
}
