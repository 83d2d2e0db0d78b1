// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for AlumniHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, token_secret, etc.
//   - Environment variables: ALUMNIHUB_MONGO_URI, ALUMNIHUB_TOKEN_SECRET, etc.
//   - Command-line flags: --mongo_uri, --token_secret, etc.
//
// Secrets have no defaults. Development runs get a random key per process.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "alumnihub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "token_secret", Default: "", Desc: "HMAC key for bearer tokens (required in prod, at least 32 bytes)"},
	{Name: "token_ttl", Default: "24h", Desc: "Bearer token lifetime"},
	{Name: "session_key", Default: "", Desc: "Session cookie signing key (required in prod)"},
	{Name: "session_name", Default: "alumnihub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Object storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "alumnihub/", Desc: "S3 key prefix"},
	{Name: "storage_public_url", Default: "", Desc: "Public base URL for stored objects"},

	// Event bus and shared counters
	{Name: "nats_url", Default: "", Desc: "NATS server URL (blank uses the in-process bus)"},
	{Name: "redis_addr", Default: "", Desc: "Redis address (blank uses in-memory limiters)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "allowed_origins", Default: "", Desc: "Comma-separated websocket origins (blank means same host)"},
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated proxy CIDRs whose X-Forwarded-For is honored (blank means loopback and private)"},

	// Email/SMTP
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs mail instead)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port (STARTTLS; 465 for implicit TLS)"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@alumnihub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "AlumniHub", Desc: "From display name"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for email links"},

	// Moderation
	{Name: "blocked_terms", Default: "", Desc: "Comma-separated terms added to the blocklist"},
	{Name: "require_approval", Default: false, Desc: "Only show admin-approved posts in the feed"},

	// Mailed link lifetimes
	{Name: "reset_token_expiry", Default: "1h", Desc: "Password reset link expiry"},
	{Name: "verify_token_expiry", Default: "24h", Desc: "Email verification link expiry"},

	{Name: "write_rate_limit", Default: 60, Desc: "Writes per minute per client IP (0 disables)"},

	// Audit logging
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ALUMNIHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TokenSecret:   appValues.String("token_secret"),
		TokenTTL:      appValues.Duration("token_ttl", 24*time.Hour),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
		StorageS3Region:  appValues.String("storage_s3_region"),
		StorageS3Bucket:  appValues.String("storage_s3_bucket"),
		StorageS3Prefix:  appValues.String("storage_s3_prefix"),
		StoragePublicURL: appValues.String("storage_public_url"),

		NATSURL:        appValues.String("nats_url"),
		RedisAddr:      appValues.String("redis_addr"),
		RedisPassword:  appValues.String("redis_password"),
		RedisDB:        appValues.Int("redis_db"),
		AllowedOrigins: splitList(appValues.String("allowed_origins")),
		TrustedProxies: splitList(appValues.String("trusted_proxies")),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),
		BaseURL:      appValues.String("base_url"),

		BlockedTerms:    splitList(appValues.String("blocked_terms")),
		RequireApproval: appValues.Bool("require_approval"),

		ResetTokenExpiry:  appValues.Duration("reset_token_expiry", time.Hour),
		VerifyTokenExpiry: appValues.Duration("verify_token_expiry", 24*time.Hour),

		WriteRateLimit: appValues.Int("write_rate_limit"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
	}

	// Outside prod a missing secret gets a random per-process key, so
	// tokens and cookies do not survive a restart.
	if coreCfg.Env != "prod" {
		if appCfg.TokenSecret == "" {
			appCfg.TokenSecret = auth.RandomKey()
			logger.Warn("token_secret not set; using a random development key")
		}
		if appCfg.SessionKey == "" {
			appCfg.SessionKey = auth.RandomKey()
			logger.Warn("session_key not set; using a random development key")
		}
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// It rejects a malformed MongoDB URI, missing or short secrets in prod, and
// storage settings that cannot work, before anything tries to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database is required")
	}

	if coreCfg.Env == "prod" {
		if appCfg.TokenSecret == "" {
			return errors.New("token_secret is required in prod")
		}
		if appCfg.SessionKey == "" {
			return errors.New("session_key is required in prod")
		}
	}
	if len(appCfg.TokenSecret) < 32 {
		return errors.New("token_secret must be at least 32 bytes")
	}
	if appCfg.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}

	switch appCfg.StorageType {
	case "local":
		if appCfg.StorageLocalPath == "" {
			return errors.New("storage_local_path is required for local storage")
		}
		if !strings.HasPrefix(appCfg.StorageLocalURL, "/") {
			return fmt.Errorf("storage_local_url must be a path, got %q", appCfg.StorageLocalURL)
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return errors.New("s3 storage requires storage_s3_bucket")
		}
		if strings.Trim(appCfg.StorageS3Prefix, "/") == "" {
			return errors.New("s3 storage requires storage_s3_prefix")
		}
	default:
		return fmt.Errorf("unknown storage_type %q (want 'local' or 's3')", appCfg.StorageType)
	}

	for _, v := range []string{appCfg.AuditLogAuth, appCfg.AuditLogAdmin} {
		switch v {
		case "", "all", "db", "log", "off":
		default:
			return fmt.Errorf("invalid audit log setting %q", v)
		}
	}

	if appCfg.WriteRateLimit < 0 {
		return errors.New("write_rate_limit must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
