// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (ALUMNIHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, logging and body limits; everything AlumniHub needs
// beyond that lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connections in the driver pool
	MongoMinPoolSize uint64 // Connections kept warm

	// Bearer tokens
	TokenSecret string        // HMAC key for signed tokens (at least 32 bytes)
	TokenTTL    time.Duration // Lifetime of an issued token

	// Session cookie carrying the token for browser clients
	SessionKey    string // Secret key for signing session cookies
	SessionName   string // Cookie name (default: alumnihub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Object storage for avatars and chat attachments
	StorageType      string // "local" or "s3"
	StorageLocalPath string // Local storage root (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")
	StorageS3Region  string // AWS region
	StorageS3Bucket  string // S3 bucket name
	StorageS3Prefix  string // Key prefix inside the bucket
	StoragePublicURL string // Public base URL for objects (CDN or bucket website)

	// Event bus and shared counters (both optional)
	NATSURL       string // Blank means the in-process bus
	RedisAddr     string // Blank means in-memory limiters and revocation
	RedisPassword string
	RedisDB       int

	// Allowed origins for websocket upgrades (comma separated, blank means same host)
	AllowedOrigins []string

	// Proxies whose X-Forwarded-For is honored for client IPs (blank means loopback and private ranges)
	TrustedProxies []string

	// Email/SMTP configuration (blank host logs mail instead of sending it)
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for email links (password reset, verification)
	BaseURL string

	// Moderation
	BlockedTerms    []string // Extra terms added to the built-in blocklist
	RequireApproval bool     // Feed shows only admin-approved posts

	// Token lifetimes for mailed links
	ResetTokenExpiry  time.Duration
	VerifyTokenExpiry time.Duration

	// Writes allowed per minute per client IP
	WriteRateLimit int

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string
}
