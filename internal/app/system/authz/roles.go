// internal/app/system/authz/roles.go
package authz

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/domain/models"
)

// HasAnyRole reports whether the caller has any of the given roles.
// Returns false if nobody is signed in.
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// HasRole is HasAnyRole for a single role.
func HasRole(r *http.Request, role models.Role) bool {
	return HasAnyRole(r, role)
}
