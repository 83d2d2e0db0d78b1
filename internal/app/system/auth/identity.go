package auth

import (
	"context"
	"net/http"

	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is the verified caller for one request. The token proves UID and
// Email; Role, Name and Suspended come from the profile store on every request.
type Identity struct {
	UID           primitive.ObjectID
	Email         string
	EmailVerified bool
	Name          string
	PhotoURL      string
	Role          models.Role
	Suspended     bool

	// TokenID and ExpiresAt identify the token for revocation at sign-out.
	TokenID   string
	ExpiresAt int64
}

// IsAdmin reports whether the identity holds the admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == models.RoleAdmin
}

// DisplayName returns Name, falling back to "Anonymous".
func (id *Identity) DisplayName() string {
	if id == nil || id.Name == "" {
		return "Anonymous"
	}
	return id.Name
}

type ctxKey string

const identityKey ctxKey = "identity"

// CurrentIdentity returns the identity set by LoadIdentity.
func CurrentIdentity(r *http.Request) (*Identity, bool) {
	return FromContext(r.Context())
}

// FromContext is CurrentIdentity for code that only has a context.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// WithTestIdentity injects id into r, bypassing token verification.
func WithTestIdentity(r *http.Request, id *Identity) *http.Request {
	return r.WithContext(WithIdentity(r.Context(), id))
}
