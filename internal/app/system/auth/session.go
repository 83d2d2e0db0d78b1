package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const tokenKey = "token"

// SessionManager carries the identity token in a signed, encrypted cookie for
// browser clients. API clients send the same token as a bearer header instead.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
}

// NewSessionManager builds the cookie store. In production (secure=true)
// cookies are Secure and SameSite=None; otherwise SameSite=Lax so they work
// over http://localhost.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "alumnihub-session"
	}

	// The cookie is encrypted with a key derived from the signing key.
	encKey := sha256.Sum256([]byte("alumnihub-session-enc:" + sessionKey))
	store := sessions.NewCookieStore([]byte(sessionKey), encKey[:])
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.String("cookie", name))

	return &SessionManager{store: store, name: name}, nil
}

// RandomKey returns a random hex key for development runs where no
// session key or token secret was configured.
func RandomKey() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(32))
}

// Name returns the cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// SaveToken stores token in the session cookie.
func (sm *SessionManager) SaveToken(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// Token returns the token from the session cookie, if any.
func (sm *SessionManager) Token(r *http.Request) string {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[tokenKey].(string)
	return tok
}

// Clear expires the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
