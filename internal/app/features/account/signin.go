// internal/app/features/account/signin.go
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	accountstore "github.com/dalemusser/alumnihub/internal/app/store/accounts"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.uber.org/zap"
)

type signinInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignin handles POST /api/auth/signin. Unknown email and wrong
// password get the same response.
func (h *Handler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var in signinInput
	if err := respond.DecodeJSON(w, r, &in, 4<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		respond.Error(w, r, h.Log, apperr.Validation("email and password are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if ok, msg := h.Limiter.Check(r, in.Email); !ok {
		h.Audit.SigninRateLimited(ctx, r, in.Email, "signin")
		respond.Error(w, r, h.Log, apperr.RateLimited(msg))
		return
	}

	acct, found, err := h.Accounts.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, accountstore.ErrInvalidCredentials) {
			if found {
				h.Audit.SigninFailed(ctx, r, &acct.ID, in.Email, "wrong password")
			} else {
				h.Audit.SigninFailed(ctx, r, nil, in.Email, "unknown email")
			}
			respond.Error(w, r, h.Log, apperr.Unauthorized("invalid email or password"))
			return
		}
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}

	user, err := h.profileOf(ctx, acct.ID, acct.Email)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	tok, exp, err := h.issue(w, r, *acct)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Limiter.ResetEmail(in.Email)
	h.Audit.SigninSuccess(ctx, r, acct.ID, acct.Email)

	respond.OK(w, sessionResponse{Token: tok, ExpiresAt: exp, User: user})
}

// HandleSignout handles POST /api/auth/signout. The token id is revoked until
// the token would have expired.
func (h *Handler) HandleSignout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Auth.Revoker != nil && id.TokenID != "" {
		until := time.UnixMilli(id.ExpiresAt)
		if id.ExpiresAt == 0 {
			until = h.Now().Add(h.Auth.Tokens.TTL())
		}
		if err := h.Auth.Revoker.Revoke(ctx, id.TokenID, until); err != nil {
			respond.Error(w, r, h.Log, apperr.Unavailable("sign-out failed", err))
			return
		}
	}
	if h.Auth.Sessions != nil {
		if err := h.Auth.Sessions.Clear(w, r); err != nil {
			h.Log.Warn("clear session failed", zap.Error(err))
		}
	}
	h.Audit.Signout(ctx, r, id.UID)
	respond.NoContent(w)
}

type claimsResponse struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	TokenID       string `json:"tokenId"`
	ExpiresAt     int64  `json:"expiresAt"`
}

type verifyInput struct {
	Token string `json:"token"`
}

// HandleVerify handles POST /api/auth/verify. It decodes {token} when given,
// otherwise the caller's own token, and echoes the verified claims.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var in verifyInput
	if r.ContentLength != 0 {
		if err := respond.DecodeJSON(w, r, &in, 8<<10); err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	}

	var id *auth.Identity
	if in.Token != "" {
		var err error
		id, err = h.Auth.Verify(r.Context(), in.Token)
		if err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	} else {
		var ok bool
		if id, ok = auth.CurrentIdentity(r); !ok {
			respond.Error(w, r, h.Log, apperr.Unauthorized("authentication required"))
			return
		}
	}

	respond.OK(w, claimsResponse{
		UID:           id.UID.Hex(),
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		TokenID:       id.TokenID,
		ExpiresAt:     id.ExpiresAt,
	})
}

type meResponse struct {
	models.User
	EmailVerified bool `json:"emailVerified"`
}

// ServeMe handles GET /api/auth/me: the verified identity merged with the
// stored profile.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.profileOf(ctx, id.UID, id.Email)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, meResponse{User: user, EmailVerified: id.EmailVerified})
}
