// internal/app/features/account/reset.go
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tokenstore "github.com/dalemusser/alumnihub/internal/app/store/tokens"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/inputval"
	"github.com/dalemusser/alumnihub/internal/app/system/mailer"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type resetInput struct {
	Email string `json:"email"`
}

// HandleResetRequest handles POST /api/auth/reset. It always answers 202 so
// the response does not reveal whether the email has an account.
func (h *Handler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	var in resetInput
	if err := respond.DecodeJSON(w, r, &in, 4<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if !inputval.IsValidEmail(in.Email) {
		respond.Error(w, r, h.Log, apperr.Validation("a valid email address is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		tok, err := h.Tokens.Create(ctx, tokenstore.PurposeReset, acct.ID, acct.Email, h.Cfg.ResetTTL)
		if err != nil {
			h.Log.Error("create reset token failed", zap.Error(err), zap.String("user_id", acct.ID.Hex()))
			break
		}
		msg := mailer.BuildPasswordResetEmail(mailer.LinkEmailData{
			SiteName:  h.Cfg.SiteName,
			Link:      h.link("/reset", tok),
			ExpiresIn: formatExpiry(h.Cfg.ResetTTL),
		})
		msg.To = acct.Email
		h.send(msg, acct.ID)
		h.Audit.PasswordResetRequested(ctx, r, acct.ID)
	case errors.Is(err, mongo.ErrNoDocuments):
		h.Log.Info("password reset for unknown email")
	default:
		h.Log.Error("reset lookup failed", zap.Error(err))
	}
	respond.JSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

type resetConfirmInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleResetConfirm handles POST /api/auth/reset/confirm.
func (h *Handler) HandleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in resetConfirmInput
	if err := respond.DecodeJSON(w, r, &in, 4<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var v inputval.Result
	v.Required("token", "Token", in.Token)
	v.MinLen("password", "Password", in.Password, minPasswordLen)
	v.MaxLen("password", "Password", in.Password, maxPasswordLen)
	if v.HasErrors() {
		respond.Error(w, r, h.Log, apperr.Validation("%s", v.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.Tokens.Consume(ctx, tokenstore.PurposeReset, in.Token)
	if err != nil {
		respond.Error(w, r, h.Log, tokenErr(err))
		return
	}
	if err := h.Accounts.SetPassword(ctx, t.UserID, in.Password, h.now()); err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	h.Audit.PasswordReset(ctx, r, t.UserID)
	respond.NoContent(w)
}

// HandleVerifySend handles POST /api/auth/verify-email/send for the caller.
func (h *Handler) HandleVerifySend(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CurrentIdentity(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByID(ctx, id.UID)
	if err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	if acct.EmailVerified {
		respond.OK(w, map[string]bool{"emailVerified": true})
		return
	}
	if !h.sendVerification(ctx, *acct) {
		respond.Error(w, r, h.Log, apperr.Unavailable("could not send verification email", nil))
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

type tokenInput struct {
	Token string `json:"token"`
}

// HandleVerifyConfirm handles POST /api/auth/verify-email/confirm. Tokens
// issued before confirmation still carry emailVerified=false until the next
// sign-in.
func (h *Handler) HandleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var in tokenInput
	if err := respond.DecodeJSON(w, r, &in, 4<<10); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if strings.TrimSpace(in.Token) == "" {
		respond.Error(w, r, h.Log, apperr.Validation("token is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Tokens.Consume(ctx, tokenstore.PurposeVerifyEmail, in.Token)
	if err != nil {
		respond.Error(w, r, h.Log, tokenErr(err))
		return
	}
	if err := h.Accounts.MarkVerified(ctx, t.UserID, h.now()); err != nil {
		respond.Error(w, r, h.Log, storeErr(err))
		return
	}
	h.Audit.EmailVerified(ctx, r, t.UserID)
	respond.OK(w, map[string]bool{"emailVerified": true})
}

// sendVerification creates a verification token and mails it. It reports
// whether the email went out; failures are logged.
func (h *Handler) sendVerification(ctx context.Context, acct models.Account) bool {
	tok, err := h.Tokens.Create(ctx, tokenstore.PurposeVerifyEmail, acct.ID, acct.Email, h.Cfg.VerifyTTL)
	if err != nil {
		h.Log.Error("create verification token failed", zap.Error(err), zap.String("user_id", acct.ID.Hex()))
		return false
	}
	msg := mailer.BuildVerificationEmail(mailer.LinkEmailData{
		SiteName:  h.Cfg.SiteName,
		Link:      h.link("/verify", tok),
		ExpiresIn: formatExpiry(h.Cfg.VerifyTTL),
	})
	msg.To = acct.Email
	return h.send(msg, acct.ID)
}

func (h *Handler) send(msg mailer.Email, uid primitive.ObjectID) bool {
	if h.Mailer == nil {
		return false
	}
	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Error("send email failed", zap.Error(err), zap.String("user_id", uid.Hex()), zap.String("subject", msg.Subject))
		return false
	}
	h.Log.Info("email sent", zap.String("user_id", uid.Hex()), zap.String("subject", msg.Subject))
	return true
}

func (h *Handler) link(path, token string) string {
	return strings.TrimRight(h.Cfg.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func tokenErr(err error) error {
	if errors.Is(err, tokenstore.ErrNotFound) {
		return apperr.Validation("invalid or expired token")
	}
	return storeErr(err)
}

// formatExpiry formats a TTL as "10 minutes", "1 hour" or "24 hours".
func formatExpiry(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
