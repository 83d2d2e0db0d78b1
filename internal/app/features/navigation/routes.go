// internal/app/features/navigation/routes.go
package navigation

import "github.com/go-chi/chi/v5"

// Routes mounts under /api/nav. Both endpoints answer for anonymous callers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/resolve", h.ServeResolve)
	r.Get("/routes", h.ServeRoutes)
	return r
}
