package messages_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/messages"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/live"
	"github.com/dalemusser/alumnihub/internal/app/system/objectstore"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fixture struct {
	svc     *messages.Service
	objects *testutil.MemObjects
	bus     *events.MemoryBus
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{objects: testutil.NewMemObjects(), bus: events.NewMemoryBus()}
	base := time.Now()
	var tick int64
	f.svc = &messages.Service{
		Store:   testutil.NewMemMessages(),
		Objects: f.objects,
		Bus:     f.bus,
		Now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Millisecond)
		},
		Log: zap.NewNop(),
	}
	h := messages.NewHandler(f.svc, live.NewStreamer(f.bus, nil, zap.NewNop()), zap.NewNop())
	f.router = messages.Routes(h)
	return f
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.StudentUser()

	if _, err := f.svc.Send(ctx, u, models.DefaultRoom, "   "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("blank err = %v", err)
	}
	if _, err := f.svc.Send(ctx, u, models.DefaultRoom, strings.Repeat("é", messages.MaxTextLen+1)); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("too long err = %v", err)
	}
	if _, err := f.svc.Send(ctx, u, models.DefaultRoom, strings.Repeat("é", messages.MaxTextLen)); err != nil {
		t.Errorf("max length err = %v", err)
	}
	if _, err := f.svc.Send(ctx, u, "other-room", "hi"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("other room err = %v", err)
	}
	if _, err := f.svc.Send(ctx, testutil.SuspendedUser(), models.DefaultRoom, "hi"); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("suspended err = %v", err)
	}
}

func TestSend_DenormalizesSenderAndOrdersHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.AlumniUser()
	anon := testutil.StudentUser()
	anon.Name = ""

	if _, err := f.svc.Send(ctx, u, models.DefaultRoom, " first "); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Send(ctx, anon, models.DefaultRoom, "second"); err != nil {
		t.Fatal(err)
	}
	hist, err := f.svc.History(ctx, models.DefaultRoom)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Text != "first" || hist[1].Text != "second" {
		t.Fatalf("history = %+v", hist)
	}
	if hist[0].SenderName != "Test Alumni" || hist[1].SenderName != "Anonymous" {
		t.Errorf("sender names = %q, %q", hist[0].SenderName, hist[1].SenderName)
	}
	if hist[0].CreatedAt >= hist[1].CreatedAt {
		t.Errorf("createdAt not ascending: %d, %d", hist[0].CreatedAt, hist[1].CreatedAt)
	}
}

func TestAttach_StoresFile(t *testing.T) {
	f := newFixture(t)
	up := &objectstore.Upload{
		Reader:      strings.NewReader("%PDF-1.4"),
		Filename:    "My CV.pdf",
		Size:        8,
		ContentType: "application/pdf",
	}
	m, err := f.svc.Attach(context.Background(), testutil.StudentUser(), models.DefaultRoom, "", up)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if m.FileURL == "" || m.FileName == "" {
		t.Errorf("message = %+v", m)
	}
	if len(f.objects.Objects) != 1 {
		t.Errorf("objects stored = %d", len(f.objects.Objects))
	}
	for key := range f.objects.Objects {
		if !strings.HasPrefix(key, "messages/default-room/") {
			t.Errorf("key = %q", key)
		}
		info, err := f.objects.Head(context.Background(), key)
		if err != nil || info.ContentType != "application/pdf" || info.Size != 8 {
			t.Errorf("Head(%q) = %+v, %v", key, info, err)
		}
		if m.FileURL != f.objects.URL(key) {
			t.Errorf("FileURL = %q, want %q", m.FileURL, f.objects.URL(key))
		}
	}

	big := &objectstore.Upload{Reader: strings.NewReader(""), Filename: "x", Size: messages.MaxAttachmentSize + 1}
	if _, err := f.svc.Attach(context.Background(), testutil.StudentUser(), models.DefaultRoom, "", big); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("oversize err = %v", err)
	}
}

func TestRoutes_SendAndList(t *testing.T) {
	f := newFixture(t)
	u := testutil.StudentUser()

	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.NewJSONRequest(t, "POST", "/default-room/messages", map[string]string{"text": "hi"}))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = testutil.NewRecorder()
	req := testutil.WithIdentity(testutil.NewJSONRequest(t, "POST", "/default-room/messages", map[string]string{"text": "hi"}), u)
	f.router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	rec = testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.WithIdentity(httptest.NewRequest("GET", "/default-room/messages", nil), u))
	rec.AssertStatus(t, http.StatusOK)
	var got []models.Message
	rec.DecodeJSON(t, &got)
	if len(got) != 1 || got[0].SenderID != u.UID {
		t.Errorf("messages = %+v", got)
	}

	rec = testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.WithIdentity(httptest.NewRequest("GET", "/lobby/messages", nil), u))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestRoutes_Attachment(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("hello attachment"))
	_ = mw.WriteField("text", "see file")
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/default-room/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = testutil.WithIdentity(req, testutil.StudentUser())
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var m models.Message
	rec.DecodeJSON(t, &m)
	if m.Text != "see file" || m.FileName != "notes.txt" || !strings.HasPrefix(m.FileURL, "https://files.test/messages/") {
		t.Errorf("message = %+v", m)
	}
}

func TestServeLive_SnapshotThenNewMessage(t *testing.T) {
	f := newFixture(t)
	u := testutil.StudentUser()
	if _, err := f.svc.Send(context.Background(), u, models.DefaultRoom, "before"); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.router.ServeHTTP(w, testutil.WithIdentity(r, u))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/default-room/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap live.Frame
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || len(snap.Items) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, err := f.svc.Send(context.Background(), u, models.DefaultRoom, "after"); err != nil {
		t.Fatal(err)
	}
	var ev live.Frame
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "event" || !strings.Contains(string(ev.Data), `"text":"after"`) {
		t.Errorf("event = %s %s", ev.Type, ev.Data)
	}
}
