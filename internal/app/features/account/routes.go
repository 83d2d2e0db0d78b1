// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the identity endpoints. Mount under /api/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.HandleSignup)
	r.Post("/signin", h.HandleSignin)
	r.Post("/verify", h.HandleVerify)
	r.Post("/reset", h.HandleResetRequest)
	r.Post("/reset/confirm", h.HandleResetConfirm)
	r.Post("/verify-email/confirm", h.HandleVerifyConfirm)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Get("/me", h.ServeMe)
		pr.Post("/signout", h.HandleSignout)
		pr.Post("/verify-email/send", h.HandleVerifySend)
	})

	return r
}
