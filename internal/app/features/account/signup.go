// internal/app/features/account/signup.go
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/inputval"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 128
	minNameLen     = 2
	maxNameLen     = 80
)

type signupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// sessionResponse is returned by sign-up and sign-in.
type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      models.User `json:"user"`
}

// HandleSignup handles POST /api/auth/signup. Admin cannot be self-assigned.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupInput
	if err := respond.DecodeJSON(w, r, &in, 8<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	var v inputval.Result
	v.Required("displayName", "Name", in.DisplayName)
	v.MinLen("displayName", "Name", in.DisplayName, minNameLen)
	v.MaxLen("displayName", "Name", in.DisplayName, maxNameLen)
	v.Email("email", in.Email)
	v.MinLen("password", "Password", in.Password, minPasswordLen)
	v.MaxLen("password", "Password", in.Password, maxPasswordLen)
	role := models.RoleStudent
	if in.Role != "" {
		role = models.Role(strings.ToLower(strings.TrimSpace(in.Role)))
		if !role.SelfAssignable() {
			v.Add("role", "Role must be student or alumni.")
		}
	}
	if v.HasErrors() {
		respond.Error(w, r, h.Log, apperr.Validation("%s", v.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	now := h.now()
	acct, err := h.Accounts.Create(ctx, in.Email, in.Password, now)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	user, err := h.Users.Create(ctx, models.User{
		ID:          acct.ID,
		Email:       acct.Email,
		DisplayName: in.DisplayName,
		Role:        role,
	}, now)
	if err != nil {
		// Roll back so the email can be used again.
		if derr := h.Accounts.Delete(context.WithoutCancel(ctx), acct.ID); derr != nil {
			h.Log.Error("signup rollback failed", zap.Error(derr), zap.String("user_id", acct.ID.Hex()))
		}
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}

	tok, exp, err := h.issue(w, r, acct)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.sendVerification(ctx, acct)
	h.Audit.Signup(ctx, r, acct.ID, acct.Email, string(role))

	respond.Created(w, sessionResponse{Token: tok, ExpiresAt: exp, User: user})
}

// issue signs a token for acct and stores it in the session cookie.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, acct models.Account) (string, int64, error) {
	tok, claims, err := h.Auth.Tokens.Issue(acct.ID, acct.Email, acct.EmailVerified)
	if err != nil {
		return "", 0, apperr.Internal(err)
	}
	if h.Auth.Sessions != nil {
		if err := h.Auth.Sessions.SaveToken(w, r, tok); err != nil {
			h.Log.Warn("save session failed", zap.Error(err), zap.String("user_id", acct.ID.Hex()))
		}
	}
	return tok, claims.ExpiresAt.UnixMilli(), nil
}

// profileOf returns the stored profile, or a student profile built from the
// identity when none exists yet.
func (h *Handler) profileOf(ctx context.Context, uid primitive.ObjectID, email string) (models.User, error) {
	u, err := h.Users.GetByID(ctx, uid)
	switch {
	case err == nil:
		u.Role = u.EffectiveRole()
		return *u, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{ID: uid, Email: email, Role: models.RoleStudent}, nil
	default:
		return models.User{}, storeErr(err)
	}
}
