// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the caller's role, display name, uid and a found flag.
// Without an identity it returns "", "", NilObjectID, false.
func UserCtx(r *http.Request) (role models.Role, name string, uid primitive.ObjectID, ok bool) {
	id, ok := auth.CurrentIdentity(r)
	if !ok || id.UID.IsZero() {
		return "", "", primitive.NilObjectID, false
	}
	return id.Role, id.Name, id.UID, true
}

// IsAdmin reports whether the caller is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// CanModify reports whether id may change a record owned by ownerID:
// the owner or any admin.
func CanModify(id *auth.Identity, ownerID primitive.ObjectID) bool {
	if id == nil || id.UID.IsZero() {
		return false
	}
	return id.Role == models.RoleAdmin || id.UID == ownerID
}

// CanWrite reports whether id may create content. Suspended users may not.
func CanWrite(id *auth.Identity) bool {
	return id != nil && !id.UID.IsZero() && !id.Suspended
}
