// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the caller's own profile endpoints. Mount under /api/profile.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeProfile)
		pr.With(auth.RequireActive).Patch("/", h.HandleUpdate)
		pr.With(auth.RequireActive).Post("/avatar", h.HandleAvatar)
	})
	return r
}

// UserRoutes returns public profile lookups. Mount under /api/users.
func UserRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Get("/{uid}", h.ServeUser)
	return r
}

// DirectoryRoutes returns the alumni directory. Mount under /api/alumni.
func DirectoryRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Get("/", h.ServeAlumni)
	return r
}
