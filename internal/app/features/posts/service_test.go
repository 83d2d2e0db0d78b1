package posts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/posts"
	"github.com/dalemusser/alumnihub/internal/app/policy/postpolicy"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/moderation"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []primitive.ObjectID
}

func (f *fakeNotifier) Notify(_ context.Context, to []primitive.ObjectID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to...)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      *posts.Service
	posts    *testutil.MemPosts
	reports  *testutil.MemReports
	bus      *events.MemoryBus
	notifier *fakeNotifier
	clock    *clock
}

func newFixture(t *testing.T, seed ...models.Post) *fixture {
	t.Helper()
	f := &fixture{
		posts:    testutil.NewMemPosts(seed...),
		reports:  testutil.NewMemReports(),
		bus:      events.NewMemoryBus(),
		notifier: &fakeNotifier{},
		clock:    &clock{t: time.Now()},
	}
	f.svc = &posts.Service{
		Posts:    f.posts,
		Reports:  f.reports,
		Bus:      f.bus,
		Notifier: f.notifier,
		Filter:   moderation.New(),
		Now:      f.clock.Now,
		Log:      zap.NewNop(),
	}
	return f
}

func validInput() posts.CreateInput {
	return posts.CreateInput{
		Title:   "Backend internship",
		Content: "<p>Summer role</p>",
		Type:    "internship",
		Tags:    []string{"go", "backend"},
	}
}

func TestCreate_StampsFieldsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testutil.AlumniUser()

	got := make(chan string, 1)
	if _, err := f.bus.Subscribe(events.SubjectPostCreated, func(_ string, data []byte) { got <- string(data) }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	v, err := f.svc.Create(ctx, author, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.ID.IsZero() {
		t.Error("expected an assigned id")
	}
	if v.AuthorID != author.UID {
		t.Errorf("AuthorID = %v, want caller %v", v.AuthorID, author.UID)
	}
	if v.CreatedAt != v.UpdatedAt || v.CreatedAt != models.Millis(f.clock.t) {
		t.Errorf("timestamps = %d/%d, want both %d", v.CreatedAt, v.UpdatedAt, models.Millis(f.clock.t))
	}
	if v.Views != 0 || v.Status != postpolicy.Published {
		t.Errorf("views=%d status=%s", v.Views, v.Status)
	}

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Error("post.created was not published")
	}
}

func TestCreate_ThenFeedHasItFirst(t *testing.T) {
	old := testutil.NewPost(primitive.NewObjectID(), "older", testutil.CreatedAt(models.Millis(time.Now().Add(-time.Hour))))
	f := newFixture(t, old)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, testutil.StudentUser(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	feed, err := f.svc.Feed(ctx, "all")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != v.ID {
		t.Fatalf("feed head = %+v, want created post first", feed)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*posts.CreateInput)
	}{
		{"empty title", func(in *posts.CreateInput) { in.Title = "   " }},
		{"empty content", func(in *posts.CreateInput) { in.Content = "<p> </p>" }},
		{"script-only content", func(in *posts.CreateInput) { in.Content = "<script>alert(1)</script>" }},
		{"blocked term in title", func(in *posts.CreateInput) { in.Title = "idiot post" }},
		{"blocked term in content", func(in *posts.CreateInput) { in.Content = "what an IDIOT" }},
		{"unknown type", func(in *posts.CreateInput) { in.Type = "gig" }},
		{"expires before scheduled", func(in *posts.CreateInput) {
			s, e := int64(2000), int64(1000)
			in.ScheduledAt, in.ExpiresAt = &s, &e
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mod(&in)
			_, err := f.svc.Create(context.Background(), testutil.StudentUser(), in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if f.posts.Writes != 0 {
				t.Errorf("store writes = %d, want 0", f.posts.Writes)
			}
		})
	}
}

func TestCreate_ProfanityScenario(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), testutil.StudentUser(), posts.CreateInput{
		Title: "idiot post", Content: "fine", Type: "job",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if f.posts.Len() != 0 {
		t.Error("post was stored despite blocked term")
	}
}

func TestCreate_BlockedTermsHiddenInMarkup(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"entity in content", "Backend internship", "<p>id&#105;ot</p>"},
		{"tag split in content", "Backend internship", "<p>id<b>iot</b></p>"},
		{"hex entity in content", "Backend internship", "<p>d&#x61;mn</p>"},
		{"entity in title", "Id&#105;ot manager", "<p>Summer role</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			in.Title, in.Content = tt.title, tt.content
			_, err := f.svc.Create(context.Background(), testutil.StudentUser(), in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if f.posts.Len() != 0 {
				t.Error("post was stored despite blocked term")
			}
		})
	}
}

func TestCreate_SanitizesContent(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Content = `<p onclick="x()">hi</p><script>bad()</script>`
	v, err := f.svc.Create(context.Background(), testutil.StudentUser(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Content != "<p>hi</p>" {
		t.Errorf("Content = %q, want sanitized", v.Content)
	}
}

func TestCreate_AuthRequired(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(context.Background(), nil, validInput()); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("anonymous err = %v, want unauthorized", err)
	}
	if _, err := f.svc.Create(context.Background(), testutil.SuspendedUser(), validInput()); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("suspended err = %v, want forbidden", err)
	}
}

func TestFeed_ExcludesExpiredAsClockAdvances(t *testing.T) {
	now := time.Now()
	author := primitive.NewObjectID()
	soon := testutil.NewPost(author, "soon", testutil.ExpiredAt(now.Add(time.Minute)))
	f := newFixture(t, soon)
	f.clock.t = now
	ctx := context.Background()

	feed, err := f.svc.Feed(ctx, "")
	if err != nil || len(feed) != 1 {
		t.Fatalf("before expiry: %d posts, err %v", len(feed), err)
	}
	f.clock.Advance(time.Minute)
	feed, err = f.svc.Feed(ctx, "")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("after expiry: %d posts, want 0", len(feed))
	}
}

func TestFeed_FiltersStatusAndType(t *testing.T) {
	now := time.Now()
	a := primitive.NewObjectID()
	job := testutil.NewPost(a, "job")
	mentor := testutil.NewPost(a, "mentor", func(p *models.Post) { p.Type = models.PostMentorship })
	draft := testutil.NewPost(a, "draft", testutil.Drafted)
	scheduled := testutil.NewPost(a, "later", testutil.ScheduledAt(now.Add(time.Hour)))
	f := newFixture(t, job, mentor, draft, scheduled)
	f.clock.t = now
	ctx := context.Background()

	all, err := f.svc.Feed(ctx, "all")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d posts, want 2", len(all))
	}
	only, err := f.svc.Feed(ctx, "mentorship")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(only) != 1 || only[0].ID != mentor.ID {
		t.Errorf("mentorship feed = %+v", only)
	}
	if _, err := f.svc.Feed(ctx, "gig"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("unknown type err = %v, want validation", err)
	}
}

func TestFeed_RequireApproval(t *testing.T) {
	a := primitive.NewObjectID()
	approved := testutil.NewPost(a, "ok", func(p *models.Post) { p.Approved = true })
	pending := testutil.NewPost(a, "pending")
	f := newFixture(t, approved, pending)
	f.svc.Options = postpolicy.Options{RequireApproval: true}

	feed, err := f.svc.Feed(context.Background(), "")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != approved.ID {
		t.Errorf("feed = %+v, want only the approved post", feed)
	}
}

func TestGet_DraftVisibleToAuthorAndAdminOnly(t *testing.T) {
	author := testutil.AlumniUser()
	draft := testutil.NewPost(author.UID, "wip", testutil.Drafted)
	f := newFixture(t, draft)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, testutil.StudentUser(), draft.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("other user err = %v, want not found", err)
	}
	if _, err := f.svc.Get(ctx, nil, draft.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("anonymous err = %v, want not found", err)
	}
	v, err := f.svc.Get(ctx, author, draft.ID)
	if err != nil || v.Status != postpolicy.Draft {
		t.Errorf("author Get = %+v, %v", v, err)
	}
	if _, err := f.svc.Get(ctx, testutil.AdminUser(), draft.ID); err != nil {
		t.Errorf("admin Get err = %v", err)
	}
}

func TestList_HidesOthersDrafts(t *testing.T) {
	author := testutil.AlumniUser()
	pub := testutil.NewPost(author.UID, "pub", testutil.ExpiredAt(time.Now().Add(-time.Hour)))
	draft := testutil.NewPost(author.UID, "wip", testutil.Drafted)
	f := newFixture(t, pub, draft)
	ctx := context.Background()

	got, _ := f.svc.List(ctx, testutil.StudentUser())
	if len(got) != 1 {
		t.Errorf("student List = %d posts, want 1 (expired kept, draft hidden)", len(got))
	}
	got, _ = f.svc.List(ctx, author)
	if len(got) != 2 {
		t.Errorf("author List = %d posts, want 2", len(got))
	}
	mine, err := f.svc.Mine(ctx, author)
	if err != nil || len(mine) != 2 {
		t.Errorf("Mine = %d, %v", len(mine), err)
	}
}

func TestUpdate_RoundTripStrictlyIncreasesUpdatedAt(t *testing.T) {
	author := testutil.AlumniUser()
	future := models.Millis(time.Now().Add(time.Hour))
	p := testutil.NewPost(author.UID, "orig", testutil.CreatedAt(future))
	f := newFixture(t, p)
	ctx := context.Background()

	title := "X"
	v, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := f.svc.Get(ctx, author, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "X" {
		t.Errorf("Title = %q, want X", got.Title)
	}
	if v.UpdatedAt <= p.UpdatedAt {
		t.Errorf("UpdatedAt = %d, want > %d", v.UpdatedAt, p.UpdatedAt)
	}
	if got.Content != p.Content {
		t.Errorf("Content changed to %q", got.Content)
	}
}

func TestUpdate_Authorization(t *testing.T) {
	author := testutil.AlumniUser()
	p := testutil.NewPost(author.UID, "orig")
	f := newFixture(t, p)
	ctx := context.Background()
	title := "new"

	if _, err := f.svc.Update(ctx, testutil.StudentUser(), p.ID, posts.PatchInput{Title: &title}); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("stranger err = %v, want forbidden", err)
	}
	if _, err := f.svc.Update(ctx, testutil.AdminUser(), p.ID, posts.PatchInput{Title: &title}); err != nil {
		t.Errorf("admin err = %v", err)
	}
	bad := "you idiot"
	if _, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{Title: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("blocked term err = %v, want validation", err)
	}
	if _, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty patch err = %v, want validation", err)
	}
	if _, err := f.svc.Update(ctx, author, primitive.NewObjectID(), posts.PatchInput{Title: &title}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing post err = %v, want not found", err)
	}
}

func TestUpdate_ChecksWindowAgainstStoredTimes(t *testing.T) {
	author := testutil.AlumniUser()
	exp := time.Now().Add(2 * time.Hour)
	p := testutil.NewPost(author.UID, "orig", testutil.ExpiredAt(exp))
	f := newFixture(t, p)
	ctx := context.Background()

	late := models.Millis(exp.Add(time.Hour))
	if _, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{ScheduledAt: &late}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("scheduledAt after stored expiresAt err = %v, want validation", err)
	}
	got, err := f.svc.Get(ctx, author, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ScheduledAt != nil {
		t.Errorf("ScheduledAt = %d, want unchanged", *got.ScheduledAt)
	}

	early := models.Millis(exp.Add(-time.Hour))
	if _, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{ScheduledAt: &early}); err != nil {
		t.Errorf("scheduledAt before stored expiresAt err = %v", err)
	}
	before := models.Millis(exp.Add(-90 * time.Minute))
	if _, err := f.svc.Update(ctx, author, p.ID, posts.PatchInput{ExpiresAt: &before}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expiresAt before stored scheduledAt err = %v, want validation", err)
	}
}

func TestDelete_KeepsReports(t *testing.T) {
	author := testutil.AlumniUser()
	p := testutil.NewPost(author.UID, "orig")
	f := newFixture(t, p)
	ctx := context.Background()

	if _, _, err := f.svc.Report(ctx, testutil.StudentUser(), p.ID, "spam"); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := f.svc.Delete(ctx, testutil.StudentUser(), p.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("stranger delete err = %v, want forbidden", err)
	}
	if err := f.svc.Delete(ctx, author, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, author, p.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	rs, _ := f.svc.ListReports(ctx, "")
	if len(rs) != 1 {
		t.Errorf("reports after delete = %d, want 1", len(rs))
	}
}

func TestView_ConcurrentIncrements(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "popular")
	f := newFixture(t, p)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.View(ctx, nil, p.ID); err != nil {
				t.Errorf("View: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := f.svc.Get(ctx, nil, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Views != n {
		t.Errorf("Views = %d, want %d", v.Views, n)
	}
	if _, err := f.svc.View(ctx, nil, primitive.NewObjectID()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing post err = %v", err)
	}
}

func TestReportThenResolve(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "p1")
	f := newFixture(t, p)
	ctx := context.Background()
	reporter := testutil.StudentUser()
	admin := testutil.AdminUser()

	rep, created, err := f.svc.Report(ctx, reporter, p.ID, "spam")
	if err != nil || !created {
		t.Fatalf("Report = %v, %v", created, err)
	}
	if rep.Status != models.ReportPending || rep.ReporterID != reporter.UID || rep.Reason != "spam" {
		t.Errorf("report = %+v", rep)
	}

	again, created, err := f.svc.Report(ctx, reporter, p.ID, "spam again")
	if err != nil || created || again.ID != rep.ID {
		t.Errorf("duplicate report = %+v created=%v err=%v", again, created, err)
	}

	if _, _, err := f.svc.ResolveReport(ctx, reporter, rep.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("non-admin resolve err = %v", err)
	}
	res, changed, err := f.svc.ResolveReport(ctx, admin, rep.ID)
	if err != nil || !changed || res.Status != models.ReportResolved {
		t.Fatalf("resolve = %+v changed=%v err=%v", res, changed, err)
	}
	if res.ResolvedBy == nil || *res.ResolvedBy != admin.UID {
		t.Errorf("ResolvedBy = %v", res.ResolvedBy)
	}
	res, changed, err = f.svc.ResolveReport(ctx, admin, rep.ID)
	if err != nil || changed || res.Status != models.ReportResolved {
		t.Errorf("second resolve = %+v changed=%v err=%v", res, changed, err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != reporter.UID {
		t.Errorf("notifications = %v, want one to reporter", f.notifier.sent)
	}
}

func TestReport_DefaultsAndMissingPost(t *testing.T) {
	p := testutil.NewPost(primitive.NewObjectID(), "p1")
	f := newFixture(t, p)
	ctx := context.Background()

	rep, _, err := f.svc.Report(ctx, testutil.StudentUser(), p.ID, "  ")
	if err != nil || rep.Reason != models.DefaultReportReason {
		t.Errorf("reason = %q, err %v", rep.Reason, err)
	}
	if _, _, err := f.svc.Report(ctx, testutil.StudentUser(), primitive.NewObjectID(), ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing post err = %v", err)
	}
}

func TestViewAndReport_HiddenPostIsNotFound(t *testing.T) {
	author := testutil.AlumniUser()
	draft := testutil.NewPost(author.UID, "wip", testutil.Drafted)
	f := newFixture(t, draft)
	ctx := context.Background()

	if _, err := f.svc.View(ctx, nil, draft.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("anonymous View err = %v, want not found", err)
	}
	if _, err := f.svc.View(ctx, testutil.StudentUser(), draft.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("stranger View err = %v, want not found", err)
	}
	if _, _, err := f.svc.Report(ctx, testutil.StudentUser(), draft.ID, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("stranger Report err = %v, want not found", err)
	}
	if reps, _ := f.reports.List(ctx, "", 0); len(reps) != 0 {
		t.Errorf("reports = %d, want none for hidden post", len(reps))
	}

	if n, err := f.svc.View(ctx, author, draft.ID); err != nil || n != 1 {
		t.Errorf("author View = %d, %v; want 1", n, err)
	}
	if _, _, err := f.svc.Report(ctx, testutil.AdminUser(), draft.ID, ""); err != nil {
		t.Errorf("admin Report err = %v", err)
	}
}

func TestModerate(t *testing.T) {
	author := testutil.AlumniUser()
	p := testutil.NewPost(author.UID, "p1")
	f := newFixture(t, p)
	ctx := context.Background()

	if _, err := f.svc.Moderate(ctx, author, p.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("non-admin err = %v", err)
	}
	v, err := f.svc.Moderate(ctx, testutil.AdminUser(), p.ID)
	if err != nil || !v.Approved {
		t.Fatalf("Moderate = %+v, %v", v, err)
	}
	if _, err := f.svc.Moderate(ctx, testutil.AdminUser(), p.ID); err != nil {
		t.Errorf("second approve err = %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != author.UID {
		t.Errorf("notifications = %v, want exactly one to author", f.notifier.sent)
	}
}

func TestStoreFailureIsUnavailableOrInternal(t *testing.T) {
	f := newFixture(t)
	f.posts.Err = context.DeadlineExceeded
	_, err := f.svc.Feed(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if k := apperr.KindOf(err); k != apperr.KindInternal && k != apperr.KindUnavailable {
		t.Errorf("kind = %v", k)
	}
}
