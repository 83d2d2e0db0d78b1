package posts_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/features/posts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, seed ...models.Post) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t, seed...)
	return posts.Routes(posts.NewHandler(f.svc, zap.NewNop())), f
}

func TestHandleCreate_RequiresSignIn(t *testing.T) {
	router, _ := newRouter(t)
	req := testutil.NewJSONRequest(t, "POST", "/posts", map[string]any{"title": "t", "content": "c", "type": "job"})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestHandleCreate_SuspendedIsForbidden(t *testing.T) {
	router, _ := newRouter(t)
	req := testutil.NewJSONRequest(t, "POST", "/posts", map[string]any{"title": "t", "content": "c", "type": "job"})
	req = testutil.WithIdentity(req, testutil.SuspendedUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestHandleCreate_ForcesAuthor(t *testing.T) {
	router, _ := newRouter(t)
	caller := testutil.AlumniUser()
	req := testutil.NewJSONRequest(t, "POST", "/posts", map[string]any{
		"title":   "Mentor wanted",
		"content": "<p>Weekly calls</p>",
		"type":    "mentorship",
		"tags":    "a,, b ,c,",
	})
	req = testutil.WithIdentity(req, caller)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var got posts.View
	rec.DecodeJSON(t, &got)
	if got.AuthorID != caller.UID {
		t.Errorf("authorId = %v, want %v", got.AuthorID, caller.UID)
	}
	if len(got.Tags) != 3 || got.Tags[0] != "a" || got.Tags[1] != "b" || got.Tags[2] != "c" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestHandleCreate_RejectsUnknownFields(t *testing.T) {
	router, _ := newRouter(t)
	req := testutil.NewJSONRequest(t, "POST", "/posts", map[string]any{
		"title": "t", "content": "c", "type": "job", "authorId": primitive.NewObjectID().Hex(),
	})
	req = testutil.WithIdentity(req, testutil.StudentUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleCreate_ProfanityMessage(t *testing.T) {
	router, _ := newRouter(t)
	req := testutil.NewJSONRequest(t, "POST", "/posts", map[string]any{"title": "idiot post", "content": "fine", "type": "job"})
	req = testutil.WithIdentity(req, testutil.StudentUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
	if msg := rec.ErrorMessage(t); msg == "" {
		t.Error("expected a user-facing error message")
	}
}

func TestServeGet_BadAndMissingID(t *testing.T) {
	router, _ := newRouter(t)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/posts/nope", nil))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/posts/"+primitive.NewObjectID().Hex(), nil))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeFeedAndList(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "visible")
	router, _ := newRouter(t, p)

	for _, target := range []string{"/feed", "/feed?type=job", "/posts"} {
		rec := testutil.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		rec.AssertStatus(t, http.StatusOK)
		var got []posts.View
		rec.DecodeJSON(t, &got)
		if len(got) != 1 || got[0].ID != p.ID {
			t.Errorf("%s = %+v", target, got)
		}
	}

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/feed?type=bogus", nil))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeMine(t *testing.T) {
	author := testutil.AlumniUser()
	p := testutil.NewPost(author.UID, "mine", testutil.Drafted)
	router, _ := newRouter(t, p)

	req := testutil.WithIdentity(httptest.NewRequest("GET", "/posts/mine", nil), author)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	var got []posts.View
	rec.DecodeJSON(t, &got)
	if len(got) != 1 || got[0].Status != "draft" {
		t.Errorf("mine = %+v", got)
	}
}

func TestHandleUpdateAndDelete(t *testing.T) {
	author := testutil.AlumniUser()
	p := testutil.NewPost(author.UID, "orig")
	router, _ := newRouter(t, p)

	req := testutil.NewJSONRequest(t, "PATCH", "/posts/"+p.ID.Hex(), map[string]any{"title": "X"})
	req = testutil.WithIdentity(req, testutil.StudentUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	req = testutil.NewJSONRequest(t, "PATCH", "/posts/"+p.ID.Hex(), map[string]any{"title": "X"})
	req = testutil.WithIdentity(req, author)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	req = testutil.WithIdentity(httptest.NewRequest("DELETE", "/posts/"+p.ID.Hex(), nil), author)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusNoContent)
}

func TestHandleView(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "p")
	router, _ := newRouter(t, p)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/posts/"+p.ID.Hex()+"/view", nil))
	rec.AssertStatus(t, http.StatusOK)
	var got map[string]int64
	rec.DecodeJSON(t, &got)
	if got["views"] != 1 {
		t.Errorf("views = %d, want 1", got["views"])
	}
}

func TestHandleReport(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "p")
	router, _ := newRouter(t, p)
	reporter := testutil.StudentUser()

	body := map[string]any{"postId": p.ID.Hex(), "reason": "spam"}
	req := testutil.WithIdentity(testutil.NewJSONRequest(t, "POST", "/reports", body), reporter)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var rep models.Report
	rec.DecodeJSON(t, &rep)
	if rep.ReporterID != reporter.UID || rep.Status != models.ReportPending {
		t.Errorf("report = %+v", rep)
	}

	req = testutil.WithIdentity(testutil.NewJSONRequest(t, "POST", "/reports", body), reporter)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	req = testutil.WithIdentity(testutil.NewJSONRequest(t, "POST", "/reports", map[string]any{"postId": "zzz"}), reporter)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}
