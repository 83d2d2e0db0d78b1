package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/health"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context, *readpref.ReadPref) error { return p.err }

type response struct {
	OK        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Message   string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	health.Routes(h).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	var out response
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, out
}

func TestServe_OK(t *testing.T) {
	h := health.NewHandler(pinger{}, zap.NewNop())
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	h.Now = func() time.Time { return fixed }

	rec, out := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !out.OK || out.Database != "connected" {
		t.Errorf("response = %+v", out)
	}
	if out.Timestamp != "2026-05-01T09:30:00Z" {
		t.Errorf("timestamp = %q", out.Timestamp)
	}
}

func TestServe_DatabaseDown(t *testing.T) {
	h := health.NewHandler(pinger{err: errors.New("connection refused")}, zap.NewNop())
	rec, out := serve(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if out.OK || out.Database != "disconnected" || out.Message == "" {
		t.Errorf("response = %+v", out)
	}
}

func TestServe_RealDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, out := serve(t, health.NewHandler(db.Client(), zap.NewNop()))
	if rec.Code != http.StatusOK || !out.OK {
		t.Errorf("status = %d, body = %+v", rec.Code, out)
	}
}
