// Package navpolicy maps authentication state and role to the set of
// reachable application routes.
//
// Rules:
//   - While identity is loading every decision is pending
//   - Anonymous callers reach only public routes; anything else redirects to /login
//   - Signed-in callers reach common routes and the routes of their role
//   - "/", "/dashboard", public routes and unknown paths redirect a signed-in
//     caller to their landing route "/<role>"
//   - A role route requested by another role redirects to the caller's landing route
package navpolicy

import (
	"strings"

	"github.com/dalemusser/alumnihub/internal/domain/models"
)

// Phase is the authentication phase of a client.
type Phase string

const (
	Loading       Phase = "loading"
	Anonymous     Phase = "anonymous"
	Authenticated Phase = "authenticated"
)

// State is the navigation state. Role is set only when Phase is Authenticated.
type State struct {
	Phase Phase       `json:"phase"`
	Role  models.Role `json:"role,omitempty"`
}

// Initial is the state before identity initialization resolves.
func Initial() State { return State{Phase: Loading} }

// Resolve moves to Authenticated with role read from the profile store.
// An empty or unknown role resolves to student.
func (s State) Resolve(role string) State {
	return State{Phase: Authenticated, Role: models.ParseRole(role)}
}

// NoIdentity moves to Anonymous once initialization finds no signed-in user.
func (s State) NoIdentity() State { return State{Phase: Anonymous} }

// SignOut moves any state to Anonymous.
func (s State) SignOut() State { return State{Phase: Anonymous} }

// LoginPath is where anonymous callers are sent.
const LoginPath = "/login"

// Landing returns the default route for role.
func Landing(role models.Role) string {
	return "/" + string(models.ParseRole(string(role)))
}

// Access classifies a route.
type Access string

const (
	Public Access = "public"
	Common Access = "common"
	Role   Access = "role"
)

// Route is one entry of the route table.
type Route struct {
	Pattern string        `json:"pattern"`
	Access  Access        `json:"access"`
	Roles   []models.Role `json:"roles,omitempty"`
}

// Table is the application route table.
var Table = []Route{
	{Pattern: "/login", Access: Public},
	{Pattern: "/signup", Access: Public},
	{Pattern: "/reset", Access: Public},
	{Pattern: "/verify", Access: Public},
	{Pattern: "/2fa", Access: Public},

	{Pattern: "/profile", Access: Common},
	{Pattern: "/posts", Access: Common},
	{Pattern: "/posts/create", Access: Common},
	{Pattern: "/posts/:id", Access: Common},
	{Pattern: "/posts/:id/edit", Access: Common},
	{Pattern: "/messages", Access: Common},
	{Pattern: "/notifications", Access: Common},

	{Pattern: "/student", Access: Role, Roles: []models.Role{models.RoleStudent}},
	{Pattern: "/alumni", Access: Role, Roles: []models.Role{models.RoleAlumni}},
	{Pattern: "/admin", Access: Role, Roles: []models.Role{models.RoleAdmin}},
	{Pattern: "/admin/users", Access: Role, Roles: []models.Role{models.RoleAdmin}},
	{Pattern: "/admin/reports", Access: Role, Roles: []models.Role{models.RoleAdmin}},
}

// Outcome is the kind of a navigation decision.
type Outcome string

const (
	Allow    Outcome = "allow"
	Redirect Outcome = "redirect"
	Pending  Outcome = "pending"
)

// Decision is the result of Decide. Location is set for redirects.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	Route    string  `json:"route,omitempty"` // matched pattern
}

// Decide returns what happens when a client in state s navigates to path.
func Decide(s State, path string) Decision {
	if s.Phase == Loading || s.Phase == "" {
		return Decision{Outcome: Pending}
	}
	path = clean(path)
	route, found := Match(path)

	if s.Phase == Anonymous {
		if found && route.Access == Public {
			return Decision{Outcome: Allow, Route: route.Pattern}
		}
		return Decision{Outcome: Redirect, Location: LoginPath}
	}

	landing := Landing(s.Role)
	if path == "/" || path == "/dashboard" || !found {
		return Decision{Outcome: Redirect, Location: landing}
	}
	switch route.Access {
	case Common:
		return Decision{Outcome: Allow, Route: route.Pattern}
	case Role:
		if route.allows(s.Role) {
			return Decision{Outcome: Allow, Route: route.Pattern}
		}
	}
	return Decision{Outcome: Redirect, Location: landing}
}

// Reachable lists the route patterns a client in state s may open.
func Reachable(s State) []Route {
	if s.Phase == Loading || s.Phase == "" {
		return []Route{}
	}
	out := []Route{}
	for _, r := range Table {
		switch {
		case s.Phase == Anonymous && r.Access == Public:
			out = append(out, r)
		case s.Phase == Authenticated && r.Access == Common:
			out = append(out, r)
		case s.Phase == Authenticated && r.Access == Role && r.allows(s.Role):
			out = append(out, r)
		}
	}
	return out
}

// Match finds the table route for path. ":name" segments match any single
// non-empty segment; literal routes win over parameterized ones.
func Match(path string) (Route, bool) {
	path = clean(path)
	var param *Route
	for i := range Table {
		r := &Table[i]
		if r.Pattern == path {
			return *r, true
		}
		if param == nil && strings.Contains(r.Pattern, ":") && matchPattern(r.Pattern, path) {
			param = r
		}
	}
	if param != nil {
		return *param, true
	}
	return Route{}, false
}

func (r Route) allows(role models.Role) bool {
	for _, want := range r.Roles {
		if want == role {
			return true
		}
	}
	return false
}

func matchPattern(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}

// clean strips the query and fragment and any trailing slash.
func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
