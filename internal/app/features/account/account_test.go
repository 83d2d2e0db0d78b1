package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/account"
	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/mailer"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (m *fakeMailer) Send(e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

// lastToken pulls the token out of the most recent link sent to addr.
func (m *fakeMailer) lastToken(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		e := m.sent[i]
		if e.To != addr {
			continue
		}
		at := strings.Index(e.TextBody, "http")
		if at < 0 {
			t.Fatalf("no link in email %q", e.TextBody)
		}
		link := strings.Fields(e.TextBody[at:])[0]
		u, err := url.Parse(link)
		if err != nil {
			t.Fatalf("parse link %q: %v", link, err)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no email sent to %s", addr)
	return ""
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	router   http.Handler
	accounts *testutil.MemAccounts
	users    *testutil.MemUsers
	tokens   *testutil.MemTokens
	mail     *fakeMailer
	audit    *testutil.MemAudit
}

func newFixture(t *testing.T, limiter *ratelimit.SigninLimiter) *fixture {
	t.Helper()
	f := &fixture{
		accounts: testutil.NewMemAccounts(),
		users:    testutil.NewMemUsers(),
		tokens:   testutil.NewMemTokens(),
		mail:     &fakeMailer{},
		audit:    testutil.NewMemAudit(),
	}
	tm, err := auth.NewTokenManager(strings.Repeat("k", 32), "alumnihub-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	sm, err := auth.NewSessionManager(auth.RandomKey(), "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	authn := &auth.Authenticator{
		Tokens:   tm,
		Revoker:  auth.NewMemoryRevoker(),
		Sessions: sm,
		Profiles: f.users,
		Log:      zap.NewNop(),
	}
	h := account.NewHandler(f.accounts, f.users, f.tokens, authn, limiter, f.mail,
		auditlog.New(f.audit, zap.NewNop(), auditlog.Config{}),
		account.Config{BaseURL: "https://hub.test/"}, zap.NewNop())

	r := chi.NewRouter()
	r.Use(authn.LoadIdentity)
	r.Mount("/", account.Routes(h))
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) *testutil.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      models.User `json:"user"`
}

func (f *fixture) signup(t *testing.T, email, password, name, role string) session {
	t.Helper()
	rec := f.do(t, "POST", "/signup", "", map[string]string{
		"email": email, "password": password, "displayName": name, "role": role,
	})
	rec.AssertStatus(t, http.StatusCreated)
	var s session
	rec.DecodeJSON(t, &s)
	return s
}

func TestSignup(t *testing.T) {
	f := newFixture(t, nil)
	s := f.signup(t, "ada@school.edu", "secret1", "Ada Lovelace", "alumni")

	if s.Token == "" || s.ExpiresAt == 0 {
		t.Fatalf("missing token in %+v", s)
	}
	if s.User.Role != models.RoleAlumni || s.User.DisplayName != "Ada Lovelace" {
		t.Errorf("user = %+v", s.User)
	}
	if _, err := f.accounts.GetByEmail(context.Background(), "ADA@school.edu"); err != nil {
		t.Errorf("account not stored: %v", err)
	}
	if tok := f.mail.lastToken(t, "ada@school.edu"); tok == "" {
		t.Error("verification email carries no token")
	}
	if got := f.audit.Types(); !slices.Equal(got, []string{audit.EventSignup}) {
		t.Errorf("audit events = %v", got)
	}

	rec := f.do(t, "GET", "/me", s.Token, nil)
	rec.AssertStatus(t, http.StatusOK)
	var me struct {
		models.User
		EmailVerified bool `json:"emailVerified"`
	}
	rec.DecodeJSON(t, &me)
	if me.ID != s.User.ID || me.Role != models.RoleAlumni || me.EmailVerified {
		t.Errorf("me = %+v", me)
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"short name", map[string]string{"email": "a@b.edu", "password": "secret1", "displayName": "A"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "secret1", "displayName": "Ada"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "a@b.edu", "password": "12345", "displayName": "Ada"}, http.StatusBadRequest},
		{"admin role", map[string]string{"email": "a@b.edu", "password": "secret1", "displayName": "Ada", "role": "admin"}, http.StatusBadRequest},
		{"default role", map[string]string{"email": "a@b.edu", "password": "secret1", "displayName": "Ada"}, http.StatusCreated},
		{"duplicate email", map[string]string{"email": "A@B.edu", "password": "secret1", "displayName": "Ada"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.do(t, "POST", "/signup", "", tt.body).AssertStatus(t, tt.want)
		})
	}
}

func TestSignin(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "grace@school.edu", "hopper42", "Grace Hopper", "student")

	rec := f.do(t, "POST", "/signin", "", map[string]string{"email": "grace@school.edu", "password": "wrong"})
	rec.AssertStatus(t, http.StatusUnauthorized)
	wrong := rec.ErrorMessage(t)

	rec = f.do(t, "POST", "/signin", "", map[string]string{"email": "nobody@school.edu", "password": "hopper42"})
	rec.AssertStatus(t, http.StatusUnauthorized)
	if unknown := rec.ErrorMessage(t); unknown != wrong {
		t.Errorf("unknown email message %q differs from wrong password %q", unknown, wrong)
	}

	rec = f.do(t, "POST", "/signin", "", map[string]string{"email": " Grace@School.edu ", "password": "hopper42"})
	rec.AssertStatus(t, http.StatusOK)
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("signin should set the session cookie")
	}
	var s session
	rec.DecodeJSON(t, &s)
	if s.User.DisplayName != "Grace Hopper" {
		t.Errorf("user = %+v", s.User)
	}
	f.do(t, "GET", "/me", s.Token, nil).AssertStatus(t, http.StatusOK)

	want := []string{audit.EventSignup, audit.EventSigninFailed, audit.EventSigninFailed, audit.EventSigninSuccess}
	if got := f.audit.Types(); !slices.Equal(got, want) {
		t.Errorf("audit events = %v, want %v", got, want)
	}
}

func TestSignin_RateLimited(t *testing.T) {
	ip := ratelimit.New(100, time.Minute)
	email := ratelimit.New(2, time.Minute)
	t.Cleanup(ip.Stop)
	t.Cleanup(email.Stop)
	f := newFixture(t, ratelimit.NewSigninLimiterWith(ip, email))

	body := map[string]string{"email": "x@school.edu", "password": "nope"}
	f.do(t, "POST", "/signin", "", body).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/signin", "", body).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/signin", "", body).AssertStatus(t, http.StatusTooManyRequests)

	if got := f.audit.Types(); got[len(got)-1] != audit.EventSigninRateLimited {
		t.Errorf("last audit event = %q", got[len(got)-1])
	}
}

func TestSignout_RevokesToken(t *testing.T) {
	f := newFixture(t, nil)
	s := f.signup(t, "lin@school.edu", "secret1", "Lin", "student")

	f.do(t, "POST", "/signout", s.Token, nil).AssertStatus(t, http.StatusNoContent)
	f.do(t, "GET", "/me", s.Token, nil).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/signout", "", nil).AssertStatus(t, http.StatusUnauthorized)
}

func TestVerify_EchoesClaims(t *testing.T) {
	f := newFixture(t, nil)
	s := f.signup(t, "kay@school.edu", "secret1", "Kay", "student")

	rec := f.do(t, "POST", "/verify", "", map[string]string{"token": s.Token})
	rec.AssertStatus(t, http.StatusOK)
	var claims struct {
		UID     string `json:"uid"`
		Email   string `json:"email"`
		TokenID string `json:"tokenId"`
	}
	rec.DecodeJSON(t, &claims)
	if claims.UID != s.User.ID.Hex() || claims.Email != "kay@school.edu" || claims.TokenID == "" {
		t.Errorf("claims = %+v", claims)
	}

	f.do(t, "POST", "/verify", "", map[string]string{"token": "garbage"}).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/verify", "", nil).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/verify", s.Token, nil).AssertStatus(t, http.StatusOK)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "rosa@school.edu", "oldpass", "Rosa", "alumni")
	sentAfterSignup := f.mail.count()

	f.do(t, "POST", "/reset", "", map[string]string{"email": "ghost@school.edu"}).AssertStatus(t, http.StatusAccepted)
	if f.mail.count() != sentAfterSignup {
		t.Error("unknown email should not receive mail")
	}

	f.do(t, "POST", "/reset", "", map[string]string{"email": "rosa@school.edu"}).AssertStatus(t, http.StatusAccepted)
	tok := f.mail.lastToken(t, "rosa@school.edu")

	f.do(t, "POST", "/reset/confirm", "", map[string]string{"token": tok, "password": "123"}).AssertStatus(t, http.StatusBadRequest)
	f.do(t, "POST", "/reset/confirm", "", map[string]string{"token": tok, "password": "newpass"}).AssertStatus(t, http.StatusNoContent)
	f.do(t, "POST", "/reset/confirm", "", map[string]string{"token": tok, "password": "newpass"}).AssertStatus(t, http.StatusBadRequest)

	f.do(t, "POST", "/signin", "", map[string]string{"email": "rosa@school.edu", "password": "oldpass"}).AssertStatus(t, http.StatusUnauthorized)
	f.do(t, "POST", "/signin", "", map[string]string{"email": "rosa@school.edu", "password": "newpass"}).AssertStatus(t, http.StatusOK)
}

func TestEmailVerification(t *testing.T) {
	f := newFixture(t, nil)
	s := f.signup(t, "omar@school.edu", "secret1", "Omar", "student")

	f.do(t, "POST", "/verify-email/send", s.Token, nil).AssertStatus(t, http.StatusAccepted)
	tok := f.mail.lastToken(t, "omar@school.edu")

	rec := f.do(t, "POST", "/verify-email/confirm", "", map[string]string{"token": tok})
	rec.AssertStatus(t, http.StatusOK)
	acct, _ := f.accounts.GetByID(context.Background(), s.User.ID)
	if !acct.EmailVerified {
		t.Error("account should be verified")
	}

	// A reset token cannot confirm an email.
	f.do(t, "POST", "/reset", "", map[string]string{"email": "omar@school.edu"}).AssertStatus(t, http.StatusAccepted)
	reset := f.mail.lastToken(t, "omar@school.edu")
	f.do(t, "POST", "/verify-email/confirm", "", map[string]string{"token": reset}).AssertStatus(t, http.StatusBadRequest)

	rec = f.do(t, "POST", "/verify-email/send", s.Token, nil)
	rec.AssertStatus(t, http.StatusOK)

	if !slices.Contains(f.audit.Types(), audit.EventEmailVerified) {
		t.Error("email verification not audited")
	}
}
