package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudentUser returns a verified student identity with a fresh uid.
func StudentUser() *auth.Identity {
	return &auth.Identity{
		UID:           primitive.NewObjectID(),
		Email:         "student@test.com",
		EmailVerified: true,
		Name:          "Test Student",
		Role:          models.RoleStudent,
	}
}

// AlumniUser returns a verified alumni identity with a fresh uid.
func AlumniUser() *auth.Identity {
	return &auth.Identity{
		UID:           primitive.NewObjectID(),
		Email:         "alumni@test.com",
		EmailVerified: true,
		Name:          "Test Alumni",
		Role:          models.RoleAlumni,
	}
}

// AdminUser returns a verified admin identity with a fresh uid.
func AdminUser() *auth.Identity {
	return &auth.Identity{
		UID:           primitive.NewObjectID(),
		Email:         "admin@test.com",
		EmailVerified: true,
		Name:          "Test Admin",
		Role:          models.RoleAdmin,
	}
}

// SuspendedUser returns a suspended student identity.
func SuspendedUser() *auth.Identity {
	id := StudentUser()
	id.Suspended = true
	return id
}

// WithIdentity adds id to the request context, bypassing token verification.
func WithIdentity(r *http.Request, id *auth.Identity) *http.Request {
	return auth.WithTestIdentity(r, id)
}

// NewJSONRequest builds a request whose body is v encoded as JSON.
// A string v is sent as-is.
func NewJSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		var err error
		if body, err = json.Marshal(v); err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, strings.TrimSpace(r.Body.String()))
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t testing.TB, expectedLocation string) {
	t.Helper()
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	if location := r.Header().Get("Location"); location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t testing.TB, expected string) {
	t.Helper()
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the recorded body into dst.
func (r *ResponseRecorder) DecodeJSON(t testing.TB, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}

// ErrorMessage returns the "error" field of a JSON error body.
func (r *ResponseRecorder) ErrorMessage(t testing.TB) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	r.DecodeJSON(t, &body)
	return body.Error
}
