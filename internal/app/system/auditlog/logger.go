// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Recorder persists audit events. *audit.Store satisfies it.
type Recorder interface {
	Log(ctx context.Context, event audit.Event) error
}

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in, sign-out, reset and verification events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for moderation and user management events.
	// Values: same as Auth.
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via the Recorder) and to structured logs (via zap).
type Logger struct {
	store  Recorder
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Recorder, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) auth(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, success bool, reason string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, userID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    userID,
		ActorID:   &actorID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// --- Authentication Events ---

func (l *Logger) SigninSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventSigninSuccess, &userID, true, "", map[string]string{"email": email})
}

// SigninFailed logs a failed sign-in. userID is nil when no account matched.
func (l *Logger) SigninFailed(ctx context.Context, r *http.Request, userID *primitive.ObjectID, email, reason string) {
	l.auth(ctx, r, audit.EventSigninFailed, userID, false, reason, map[string]string{"email": email})
}

func (l *Logger) SigninRateLimited(ctx context.Context, r *http.Request, email, limitType string) {
	l.auth(ctx, r, audit.EventSigninRateLimited, nil, false, "rate limited", map[string]string{
		"email":      email,
		"limit_type": limitType,
	})
}

func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, role string) {
	l.auth(ctx, r, audit.EventSignup, &userID, true, "", map[string]string{"email": email, "role": role})
}

func (l *Logger) Signout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.auth(ctx, r, audit.EventSignout, &userID, true, "", nil)
}

func (l *Logger) PasswordResetRequested(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.auth(ctx, r, audit.EventPasswordResetRequest, &userID, true, "", nil)
}

func (l *Logger) PasswordReset(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.auth(ctx, r, audit.EventPasswordReset, &userID, true, "", nil)
}

func (l *Logger) EmailVerified(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.auth(ctx, r, audit.EventEmailVerified, &userID, true, "", nil)
}

// --- Admin Events ---

func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, from, to string) {
	l.admin(ctx, r, audit.EventRoleChanged, actorID, &userID, map[string]string{"from": from, "to": to})
}

// SuspensionChanged logs a suspend or reinstate action.
func (l *Logger) SuspensionChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, suspended bool) {
	event := audit.EventUserReinstated
	if suspended {
		event = audit.EventUserSuspended
	}
	l.admin(ctx, r, event, actorID, &userID, nil)
}

func (l *Logger) PostApproved(ctx context.Context, r *http.Request, actorID, postID, authorID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventPostApproved, actorID, &authorID, map[string]string{"post_id": postID.Hex()})
}

func (l *Logger) ReportResolved(ctx context.Context, r *http.Request, actorID, reportID, reporterID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventReportResolved, actorID, &reporterID, map[string]string{"report_id": reportID.Hex()})
}

func (l *Logger) NotificationBroadcast(ctx context.Context, r *http.Request, actorID primitive.ObjectID, title string, recipients int) {
	l.admin(ctx, r, audit.EventNotificationBroadcast, actorID, nil, map[string]string{
		"title":      title,
		"recipients": strconv.Itoa(recipients),
	})
}
