package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ProfileFetcher loads the profile that supplies role and suspension for a
// verified identity. It returns mongo.ErrNoDocuments when no profile exists.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, uid primitive.ObjectID) (*models.User, error)
}

// Authenticator verifies the caller on every request.
type Authenticator struct {
	Tokens   *TokenManager
	Revoker  Revoker
	Sessions *SessionManager
	Profiles ProfileFetcher
	Log      *zap.Logger
}

// Verify checks a raw token and builds the Identity: signature and expiry,
// then revocation, then a fresh profile read. A missing profile yields the
// student role; a failing profile store is Unavailable.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Identity, error) {
	claims, err := a.Tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	if a.Revoker != nil {
		revoked, err := a.Revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperr.Unavailable("token revocation check failed", err)
		}
		if revoked {
			return nil, apperr.Unauthorized("token has been revoked")
		}
	}
	uid, _ := claims.UID()
	id := &Identity{
		UID:           uid,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          models.RoleStudent,
		TokenID:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.UnixMilli()
	}

	// Role and suspension come only from the stored profile. A failed lookup
	// must not yield an identity, or a suspended account would pass as an
	// active student.
	p, err := a.Profiles.FetchProfile(ctx, uid)
	switch {
	case err == nil && p != nil:
		id.Name = p.DisplayName
		id.PhotoURL = p.PhotoURL
		id.Role = p.EffectiveRole()
		id.Suspended = p.Suspended
	case err == nil || errors.Is(err, mongo.ErrNoDocuments):
	default:
		return nil, apperr.Unavailable("profile lookup failed", err)
	}
	return id, nil
}

// RawToken returns the bearer token, falling back to the access_token query
// parameter on websocket upgrades and then to the session cookie.
// fromHeader reports whether the caller presented the token explicitly.
func (a *Authenticator) RawToken(r *http.Request) (tok string, fromHeader bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after), true
		}
		return "", true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if q := r.URL.Query().Get("access_token"); q != "" {
			return q, true
		}
	}
	if a.Sessions != nil {
		return a.Sessions.Token(r), false
	}
	return "", false
}

// LoadIdentity injects the verified identity into the request context.
// An invalid bearer token is rejected with 401; an invalid cookie token is
// dropped and the request continues anonymously.
func (a *Authenticator) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, fromHeader := a.RawToken(r)
		if raw == "" {
			if fromHeader {
				respond.Error(w, r, a.Log, apperr.Unauthorized("malformed Authorization header"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		id, err := a.Verify(r.Context(), raw)
		if err != nil {
			if fromHeader || apperr.Is(err, apperr.KindUnavailable) {
				respond.Error(w, r, a.Log, err)
				return
			}
			if a.Sessions != nil {
				_ = a.Sessions.Clear(w, r)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, WithTestIdentity(r, id))
	})
}

// RequireSignedIn ensures an identity is present.
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 with a JSON error body.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentIdentity(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		denyAnonymous(w, r)
	})
}

// RequireRole ensures a signed-in identity holds one of the allowed roles.
// The role is the one read from the profile store by LoadIdentity.
func RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	set := make(map[models.Role]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := CurrentIdentity(r)
			if !ok {
				denyAnonymous(w, r)
				return
			}
			if _, has := set[id.Role]; !has {
				if wantsHTML(r) {
					http.Redirect(w, r, "/"+string(id.Role), http.StatusSeeOther)
					return
				}
				respond.Error(w, r, nil, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActive rejects suspended identities on mutating requests.
// Reads stay available so a suspended user can still see the feed.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := CurrentIdentity(r)
		if ok && id.Suspended && !isSafeMethod(r.Method) {
			respond.Error(w, r, nil, apperr.Forbidden("account is suspended"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	respond.Error(w, r, nil, apperr.Unauthorized("authentication required"))
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isSafeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}
