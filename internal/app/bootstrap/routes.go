// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"
	"strings"
	"time"

	accountfeature "github.com/dalemusser/alumnihub/internal/app/features/account"
	adminfeature "github.com/dalemusser/alumnihub/internal/app/features/admin"
	auditlogfeature "github.com/dalemusser/alumnihub/internal/app/features/auditlog"
	healthfeature "github.com/dalemusser/alumnihub/internal/app/features/health"
	messagesfeature "github.com/dalemusser/alumnihub/internal/app/features/messages"
	navfeature "github.com/dalemusser/alumnihub/internal/app/features/navigation"
	notificationsfeature "github.com/dalemusser/alumnihub/internal/app/features/notifications"
	postsfeature "github.com/dalemusser/alumnihub/internal/app/features/posts"
	profilefeature "github.com/dalemusser/alumnihub/internal/app/features/profile"
	"github.com/dalemusser/alumnihub/internal/app/policy/postpolicy"
	accountstore "github.com/dalemusser/alumnihub/internal/app/store/accounts"
	auditstore "github.com/dalemusser/alumnihub/internal/app/store/audit"
	messagestore "github.com/dalemusser/alumnihub/internal/app/store/messages"
	notificationstore "github.com/dalemusser/alumnihub/internal/app/store/notifications"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	reportstore "github.com/dalemusser/alumnihub/internal/app/store/reports"
	tokenstore "github.com/dalemusser/alumnihub/internal/app/store/tokens"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/live"
	"github.com/dalemusser/alumnihub/internal/app/system/mailer"
	"github.com/dalemusser/alumnihub/internal/app/system/moderation"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. AlumniHub builds its stores and shared services
// here, installs identity loading for every request, and mounts the JSON
// API under /api with /health and file serving beside it.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Stores.
	accounts := accountstore.New(db)
	users := userstore.New(db)
	tokens := tokenstore.New(db)
	postStore := poststore.New(db)
	reportStore := reportstore.New(db)
	messageStore := messagestore.New(db)
	notificationStore := notificationstore.New(db)
	auditStore := auditstore.New(db)

	// Identity: signed tokens, revocation, and the cookie carrier.
	tokenMgr, err := auth.NewTokenManager(appCfg.TokenSecret, "alumnihub", appCfg.TokenTTL)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.TokenTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	if err := ratelimit.TrustProxies(appCfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted_proxies", zap.Error(err))
		return nil, err
	}

	var (
		revoker       auth.Revoker
		signinLimiter *ratelimit.SigninLimiter
		writeLimiter  ratelimit.Checker
	)
	if deps.Redis != nil {
		revoker = auth.NewRedisRevoker(deps.Redis)
		signinLimiter = ratelimit.NewSigninLimiterWith(
			ratelimit.NewRedis(deps.Redis, "signin:ip", 20, 15*time.Minute, logger),
			ratelimit.NewRedis(deps.Redis, "signin:email", 5, 15*time.Minute, logger),
		)
		if appCfg.WriteRateLimit > 0 {
			writeLimiter = ratelimit.NewRedis(deps.Redis, "writes", appCfg.WriteRateLimit, time.Minute, logger)
		}
	} else {
		revoker = auth.NewMemoryRevoker()
		signinLimiter = ratelimit.NewSigninLimiter()
		if appCfg.WriteRateLimit > 0 {
			mem := ratelimit.New(appCfg.WriteRateLimit, time.Minute)
			onShutdown(mem.Stop)
			writeLimiter = mem
		}
	}

	authn := &auth.Authenticator{
		Tokens:   tokenMgr,
		Revoker:  revoker,
		Sessions: sessionMgr,
		Profiles: userstore.NewFetcher(db),
		Log:      logger,
	}

	// Live delivery: NATS when configured so every instance sees every event.
	var bus events.Bus = events.NewMemoryBus()
	if deps.NATS != nil {
		bus = events.NewNATSBus(deps.NATS, logger)
	}
	onShutdown(bus.Close)
	streamer := live.NewStreamer(bus, appCfg.AllowedOrigins, logger)

	objects, err := buildObjectStore(appCfg)
	if err != nil {
		logger.Error("object store init failed", zap.Error(err))
		return nil, err
	}

	var mail mailer.Sender = mailer.LogSender{Log: logger}
	if appCfg.MailSMTPHost != "" {
		mail = mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
	}

	audit := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	// Services shared by several features.
	notifySvc := &notificationsfeature.Service{Store: notificationStore, Bus: bus, Log: logger}
	postSvc := &postsfeature.Service{
		Posts:    postStore,
		Reports:  reportStore,
		Bus:      bus,
		Notifier: notifySvc,
		Filter:   moderation.New(appCfg.BlockedTerms...),
		Options:  postpolicy.Options{RequireApproval: appCfg.RequireApproval},
		Log:      logger,
	}
	messageSvc := &messagesfeature.Service{Store: messageStore, Objects: objects, Bus: bus, Log: logger}

	r := chi.NewRouter()

	// Handler panics become a generic 500; the stack goes to the log only.
	r.Use(respond.Recoverer(logger))

	// Global identity loading: verifies a bearer token or session cookie and
	// puts the Identity in the request context. Failures leave it anonymous.
	r.Use(authn.LoadIdentity)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Uploaded avatars and attachments when stored on local disk.
	if _, ok := objects.(*storage.Local); ok {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	r.Route("/api", func(api chi.Router) {
		if writeLimiter != nil {
			api.Use(ratelimit.Middleware(writeLimiter, ratelimit.ByIP))
		}

		accountHandler := accountfeature.NewHandler(accounts, users, tokens, authn, signinLimiter, mail, audit,
			accountfeature.Config{
				BaseURL:   appCfg.BaseURL,
				SiteName:  appCfg.MailFromName,
				ResetTTL:  appCfg.ResetTokenExpiry,
				VerifyTTL: appCfg.VerifyTokenExpiry,
			}, logger)
		api.Mount("/auth", accountfeature.Routes(accountHandler))

		navHandler := navfeature.NewHandler(logger)
		api.Mount("/nav", navfeature.Routes(navHandler))

		// Feed, posts and reports.
		postsHandler := postsfeature.NewHandler(postSvc, logger)
		api.Mount("/", postsfeature.Routes(postsHandler))

		// Profiles and the alumni directory.
		profileHandler := profilefeature.NewHandler(users, objects, logger)
		api.Mount("/profile", profilefeature.Routes(profileHandler))
		api.Mount("/users", profilefeature.UserRoutes(profileHandler))
		api.Mount("/alumni", profilefeature.DirectoryRoutes(profileHandler))

		// Chat rooms and notifications, each with a websocket stream.
		messagesHandler := messagesfeature.NewHandler(messageSvc, streamer, logger)
		api.Mount("/rooms", messagesfeature.Routes(messagesHandler))

		notificationsHandler := notificationsfeature.NewHandler(notifySvc, streamer, logger)
		api.Mount("/notifications", notificationsfeature.Routes(notificationsHandler))

		// Administration.
		auditHandler := auditlogfeature.NewHandler(auditStore, users, logger)
		api.Mount("/admin/audit", auditlogfeature.Routes(auditHandler))

		adminHandler := adminfeature.NewHandler(users, postSvc, notifySvc, audit, logger)
		api.Mount("/admin", adminfeature.Routes(adminHandler))
	})

	return r, nil
}

// buildObjectStore returns the configured backend for avatars and attachments.
// S3 credentials come from the default AWS chain.
func buildObjectStore(appCfg AppConfig) (storage.Store, error) {
	if appCfg.StorageType == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
		defer cancel()
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:  appCfg.StorageS3Bucket,
			Region:  appCfg.StorageS3Region,
			Prefix:  strings.Trim(appCfg.StorageS3Prefix, "/"),
			BaseURL: appCfg.StoragePublicURL,
		})
	}
	return storage.NewLocal(storage.LocalConfig{
		BasePath: appCfg.StorageLocalPath,
		BaseURL:  appCfg.StorageLocalURL,
	})
}
