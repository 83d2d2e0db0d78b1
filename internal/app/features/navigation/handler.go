// internal/app/features/navigation/handler.go
package navigation

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/policy/navpolicy"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/navigation"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler evaluates client navigation against the route table for the
// verified caller. The role always comes from the identity middleware,
// which reads it from the profile store.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// stateOf maps the request identity onto the navigation state machine.
func stateOf(r *http.Request) navpolicy.State {
	s := navpolicy.Initial()
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		return s.NoIdentity()
	}
	return s.Resolve(string(id.Role))
}

type resolveResponse struct {
	State    navpolicy.State    `json:"state"`
	Path     string             `json:"path"`
	Decision navpolicy.Decision `json:"decision"`
	// Next is where the client should go: the path itself on allow, or the
	// redirect target (with a return parameter for the login page).
	Next string `json:"next"`
}

// ServeResolve handles GET /api/nav/resolve?path=.
func (h *Handler) ServeResolve(w http.ResponseWriter, r *http.Request) {
	s := stateOf(r)
	path := navigation.PathParam(r, "path", "/")
	d := navpolicy.Decide(s, path)

	next := path
	if d.Outcome == navpolicy.Redirect {
		next = d.Location
		if d.Location == navpolicy.LoginPath {
			next = navigation.WithReturn(d.Location, path)
		}
	}
	respond.OK(w, resolveResponse{State: s, Path: path, Decision: d, Next: next})
}

type routesResponse struct {
	State   navpolicy.State   `json:"state"`
	Landing string            `json:"landing"`
	Routes  []navpolicy.Route `json:"routes"`
}

// ServeRoutes handles GET /api/nav/routes: the routes the caller may open.
func (h *Handler) ServeRoutes(w http.ResponseWriter, r *http.Request) {
	s := stateOf(r)
	landing := navpolicy.LoginPath
	if s.Phase == navpolicy.Authenticated {
		landing = navpolicy.Landing(s.Role)
	}
	respond.OK(w, routesResponse{State: s, Landing: landing, Routes: navpolicy.Reachable(s)})
}
