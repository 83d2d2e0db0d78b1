package notifications_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/features/notifications"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/live"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newService() (*notifications.Service, *events.MemoryBus) {
	bus := events.NewMemoryBus()
	return &notifications.Service{Store: testutil.NewMemNotifications(), Bus: bus, Log: zap.NewNop()}, bus
}

func TestNotify_StoresAndPublishes(t *testing.T) {
	svc, bus := newService()
	ctx := context.Background()
	u := testutil.StudentUser()

	var published int
	if _, err := bus.Subscribe(events.NotifySubject(u.UID.Hex()), func(string, []byte) { published++ }); err != nil {
		t.Fatal(err)
	}
	if err := svc.Notify(ctx, []primitive.ObjectID{u.UID, primitive.NewObjectID()}, "Hello", "Body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if published != 1 {
		t.Errorf("published to recipient = %d, want 1", published)
	}
	got, err := svc.List(ctx, u)
	if err != nil || len(got) != 1 || got[0].Read || got[0].Title != "Hello" {
		t.Errorf("List = %+v, %v", got, err)
	}
	if err := svc.Notify(ctx, []primitive.ObjectID{u.UID}, " ", "x"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty title err = %v", err)
	}
}

func TestMarkReadAndClear_Persist(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	u := testutil.StudentUser()
	other := testutil.AlumniUser()
	_ = svc.Notify(ctx, []primitive.ObjectID{u.UID}, "One", "")
	_ = svc.Notify(ctx, []primitive.ObjectID{u.UID}, "Two", "")

	items, _ := svc.List(ctx, u)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if err := svc.MarkRead(ctx, other, items[0].ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("other user MarkRead err = %v, want not found", err)
	}
	if err := svc.MarkRead(ctx, u, items[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	items, _ = svc.List(ctx, u)
	read := 0
	for _, n := range items {
		if n.Read {
			read++
		}
	}
	if read != 1 {
		t.Errorf("read items = %d, want 1", read)
	}

	n, err := svc.Clear(ctx, u)
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v", n, err)
	}
	if items, _ = svc.List(ctx, u); len(items) != 0 {
		t.Errorf("after clear = %d items", len(items))
	}
}

func TestRoutes(t *testing.T) {
	svc, bus := newService()
	h := notifications.NewHandler(svc, live.NewStreamer(bus, nil, zap.NewNop()), zap.NewNop())
	router := notifications.Routes(h)
	u := testutil.StudentUser()
	_ = svc.Notify(context.Background(), []primitive.ObjectID{u.UID}, "Hi", "")

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithIdentity(httptest.NewRequest("GET", "/", nil), u))
	rec.AssertStatus(t, http.StatusOK)
	var items []models.Notification
	rec.DecodeJSON(t, &items)
	if len(items) != 1 {
		t.Fatalf("items = %d", len(items))
	}

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithIdentity(httptest.NewRequest("POST", "/"+items[0].ID.Hex()+"/read", nil), u))
	rec.AssertStatus(t, http.StatusNoContent)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithIdentity(httptest.NewRequest("DELETE", "/", nil), u))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"cleared":1`)
}
