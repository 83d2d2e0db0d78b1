package poststore_test

import (
	"errors"
	"sync"
	"testing"

	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func ptr[T any](v T) *T { return &v }

func newPost(title string, createdAt int64) models.Post {
	return models.Post{
		Title:     title,
		Content:   "body",
		Type:      models.PostJob,
		AuthorID:  primitive.NewObjectID(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestStore_IncrementViews_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, err := store.Create(ctx, newPost("counter", 1))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementViews(ctx, p.ID); err != nil {
				t.Errorf("IncrementViews failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Views != n {
		t.Errorf("views = %d, want %d", got.Views, n)
	}
}

func TestStore_IncrementViews_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.IncrementViews(ctx, primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestStore_Published(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const now = int64(1_000_000)

	live := newPost("live", 100)
	expired := newPost("expired", 200)
	expired.ExpiresAt = ptr(now)
	draft := newPost("draft", 300)
	draft.Draft = true
	scheduled := newPost("scheduled", 400)
	scheduled.ScheduledAt = ptr(now + 1)
	newer := newPost("newer", 500)
	newer.Type = models.PostMentorship
	newer.ExpiresAt = ptr(now + 1)

	for _, p := range []models.Post{live, expired, draft, scheduled, newer} {
		if _, err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create %s failed: %v", p.Title, err)
		}
	}

	got, err := store.Published(ctx, poststore.FeedQuery{Now: now})
	if err != nil {
		t.Fatalf("Published failed: %v", err)
	}
	if len(got) != 2 || got[0].Title != "newer" || got[1].Title != "live" {
		t.Fatalf("Published = %v, want [newer live]", titles(got))
	}

	got, err = store.Published(ctx, poststore.FeedQuery{Now: now, Type: models.PostJob})
	if err != nil {
		t.Fatalf("Published(job) failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "live" {
		t.Errorf("Published(job) = %v, want [live]", titles(got))
	}

	got, err = store.Published(ctx, poststore.FeedQuery{Now: now, ApprovedOnly: true})
	if err != nil {
		t.Fatalf("Published(approved) failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Published(approved) = %v, want none", titles(got))
	}
}

func TestStore_UpdateAndApprove(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, err := store.Create(ctx, newPost("before", 10))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Update(ctx, p.ID, models.PostUpdate{Title: ptr("after")}, 11)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Title != "after" || got.UpdatedAt != 11 || got.Content != "body" {
		t.Errorf("Update result = %+v", got)
	}

	for i := 0; i < 2; i++ {
		got, err = store.Approve(ctx, p.ID)
		if err != nil {
			t.Fatalf("Approve #%d failed: %v", i+1, err)
		}
		if !got.Approved {
			t.Error("expected approved")
		}
	}

	n, err := store.Delete(ctx, p.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("GetByID after delete err = %v", err)
	}
}

func titles(ps []models.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}
