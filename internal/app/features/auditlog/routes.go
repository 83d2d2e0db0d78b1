// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log viewer (typically at "/api/admin/audit").
// Admins only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
	})

	return r
}
