package posts

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/policy/postpolicy"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/dalemusser/alumnihub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/alumnihub/internal/app/system/inputval"
	"github.com/dalemusser/alumnihub/internal/app/system/moderation"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	FeedLimit       = 200
	ListLimit       = 500
	maxTitleLen     = 200
	maxContentLen   = 20000
	maxReasonLen    = 500
	disallowedTerms = "Please remove inappropriate language"
)

// PostRepo is the post persistence the service needs. *poststore.Store satisfies it.
type PostRepo interface {
	Create(ctx context.Context, p models.Post) (models.Post, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Published(ctx context.Context, q poststore.FeedQuery) ([]models.Post, error)
	All(ctx context.Context, limit int64) ([]models.Post, error)
	ByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error)
	Update(ctx context.Context, id primitive.ObjectID, upd models.PostUpdate, updatedAt int64) (*models.Post, error)
	Approve(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// ReportRepo is the report persistence the service needs. *reportstore.Store satisfies it.
type ReportRepo interface {
	Create(ctx context.Context, r models.Report) (models.Report, bool, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error)
	List(ctx context.Context, status models.ReportStatus, limit int64) ([]models.Report, error)
	Resolve(ctx context.Context, id, by primitive.ObjectID, at int64) (*models.Report, bool, error)
}

// Notifier delivers inbox items. The notifications feature provides it.
type Notifier interface {
	Notify(ctx context.Context, to []primitive.ObjectID, title, body string) error
}

// Service implements the post lifecycle on top of PostRepo and ReportRepo.
// Every method takes the verified caller; roles are never read from input.
type Service struct {
	Posts    PostRepo
	Reports  ReportRepo
	Bus      events.Bus
	Notifier Notifier
	Filter   *moderation.Filter
	Options  postpolicy.Options
	Now      func() time.Time
	Log      *zap.Logger
}

func (s *Service) now() int64 {
	if s.Now != nil {
		return models.Millis(s.Now())
	}
	return models.NowMillis()
}

// View is a post with its derived status.
type View struct {
	models.Post
	Status postpolicy.Status `json:"status"`
}

func (s *Service) views(ps []models.Post, now int64) []View {
	out := make([]View, 0, len(ps))
	for _, p := range ps {
		out = append(out, View{Post: p, Status: postpolicy.StatusOf(p, now)})
	}
	return out
}

// Feed returns the Published posts of filterType ("" or "all" for every type),
// newest first.
func (s *Service) Feed(ctx context.Context, filterType string) ([]View, error) {
	q := poststore.FeedQuery{ApprovedOnly: s.Options.RequireApproval, Limit: FeedLimit}
	if ft := strings.TrimSpace(filterType); ft != "" && !strings.EqualFold(ft, "all") {
		t, ok := models.ParsePostType(ft)
		if !ok {
			return nil, apperr.Validation("unknown post type %q", ft)
		}
		q.Type = t
	}
	q.Now = s.now()
	ps, err := s.Posts.Published(ctx, q)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.views(postpolicy.FilterFeed(ps, q.Now, s.Options), q.Now), nil
}

// List returns every post newest first. Drafts are included only for their
// author and for admins.
func (s *Service) List(ctx context.Context, viewer *auth.Identity) ([]View, error) {
	ps, err := s.Posts.All(ctx, ListLimit)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	kept := ps[:0]
	for _, p := range ps {
		if p.Draft && !postpolicy.IsOwnerOrAdmin(viewer, p) {
			continue
		}
		kept = append(kept, p)
	}
	return s.views(kept, s.now()), nil
}

// Mine returns every post the viewer authored, any status.
func (s *Service) Mine(ctx context.Context, viewer *auth.Identity) ([]View, error) {
	if viewer == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	ps, err := s.Posts.ByAuthor(ctx, viewer.UID)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.views(ps, s.now()), nil
}

// Get returns one post. Posts the viewer may not see are reported as not found.
func (s *Service) Get(ctx context.Context, viewer *auth.Identity, id primitive.ObjectID) (View, error) {
	p, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return View{}, storeErr(err, "post")
	}
	now := s.now()
	if !postpolicy.CanView(viewer, *p, now, s.Options) {
		return View{}, apperr.NotFound("post not found")
	}
	return View{Post: *p, Status: postpolicy.StatusOf(*p, now)}, nil
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	Type        string        `json:"type"`
	Tags        inputval.Tags `json:"tags"`
	ScheduledAt *int64        `json:"scheduledAt,omitempty"`
	ExpiresAt   *int64        `json:"expiresAt,omitempty"`
	Draft       bool          `json:"draft,omitempty"`
}

// Create validates in and stores a new post authored by viewer.
// Nothing is written when validation fails.
func (s *Service) Create(ctx context.Context, viewer *auth.Identity, in CreateInput) (View, error) {
	if err := requireWriter(viewer); err != nil {
		return View{}, err
	}
	title, content, err := s.checkText(in.Title, in.Content)
	if err != nil {
		return View{}, err
	}
	pt, ok := models.ParsePostType(in.Type)
	if !ok {
		return View{}, apperr.Validation("type must be one of job, internship, mentorship, announcement")
	}
	if err := checkTimes(in.ScheduledAt, in.ExpiresAt); err != nil {
		return View{}, err
	}

	now := s.now()
	p, err := s.Posts.Create(ctx, models.Post{
		Title:       title,
		Content:     content,
		Type:        pt,
		AuthorID:    viewer.UID,
		Tags:        inputval.NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
		ScheduledAt: in.ScheduledAt,
		ExpiresAt:   in.ExpiresAt,
		Draft:       in.Draft,
		Views:       0,
	})
	if err != nil {
		return View{}, storeErr(err, "post")
	}

	s.publish(ctx, events.SubjectPostCreated, events.PostCreated{
		ID:        p.ID.Hex(),
		AuthorID:  p.AuthorID.Hex(),
		Type:      string(p.Type),
		CreatedAt: p.CreatedAt,
	})
	return View{Post: p, Status: postpolicy.StatusOf(p, now)}, nil
}

// PatchInput is the body of a partial update. Absent fields are unchanged;
// a null scheduledAt or expiresAt is treated as absent, so a set time can be
// moved but not cleared.
type PatchInput struct {
	Title       *string        `json:"title,omitempty"`
	Content     *string        `json:"content,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Tags        *inputval.Tags `json:"tags,omitempty"`
	ScheduledAt *int64         `json:"scheduledAt,omitempty"`
	ExpiresAt   *int64         `json:"expiresAt,omitempty"`
	Draft       *bool          `json:"draft,omitempty"`
}

// Update merges in into the post. Only the author or an admin may update.
// updatedAt is strictly greater than the previous value; concurrent edits
// are last write wins.
func (s *Service) Update(ctx context.Context, viewer *auth.Identity, id primitive.ObjectID, in PatchInput) (View, error) {
	if err := requireWriter(viewer); err != nil {
		return View{}, err
	}
	cur, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return View{}, storeErr(err, "post")
	}
	if !postpolicy.CanModify(viewer, *cur) {
		return View{}, apperr.Forbidden("only the author or an admin can edit this post")
	}

	var upd models.PostUpdate
	if in.Title != nil || in.Content != nil {
		title, content := cur.Title, cur.Content
		if in.Title != nil {
			title = *in.Title
		}
		if in.Content != nil {
			content = *in.Content
		}
		title, content, err = s.checkText(title, content)
		if err != nil {
			return View{}, err
		}
		if in.Title != nil {
			upd.Title = &title
		}
		if in.Content != nil {
			upd.Content = &content
		}
	}
	if in.Type != nil {
		pt, ok := models.ParsePostType(*in.Type)
		if !ok {
			return View{}, apperr.Validation("type must be one of job, internship, mentorship, announcement")
		}
		upd.Type = &pt
	}
	if in.Tags != nil {
		tags := inputval.NormalizeTags(*in.Tags)
		upd.Tags = &tags
	}
	// The window is checked as it will be stored, patched values over current.
	sched, exp := cur.ScheduledAt, cur.ExpiresAt
	if in.ScheduledAt != nil {
		sched = in.ScheduledAt
	}
	if in.ExpiresAt != nil {
		exp = in.ExpiresAt
	}
	if err := checkTimes(sched, exp); err != nil {
		return View{}, err
	}
	upd.ScheduledAt, upd.ExpiresAt, upd.Draft = in.ScheduledAt, in.ExpiresAt, in.Draft
	if upd.IsEmpty() {
		return View{}, apperr.Validation("no fields to update")
	}

	now := s.now()
	updatedAt := now
	if updatedAt <= cur.UpdatedAt {
		updatedAt = cur.UpdatedAt + 1
	}
	p, err := s.Posts.Update(ctx, id, upd, updatedAt)
	if err != nil {
		return View{}, storeErr(err, "post")
	}
	return View{Post: *p, Status: postpolicy.StatusOf(*p, now)}, nil
}

// Delete removes a post. Reports that reference it are kept.
func (s *Service) Delete(ctx context.Context, viewer *auth.Identity, id primitive.ObjectID) error {
	if err := requireWriter(viewer); err != nil {
		return err
	}
	cur, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "post")
	}
	if !postpolicy.CanModify(viewer, *cur) {
		return apperr.Forbidden("only the author or an admin can delete this post")
	}
	n, err := s.Posts.Delete(ctx, id)
	if err != nil {
		return storeErr(err, "post")
	}
	if n == 0 {
		return apperr.NotFound("post not found")
	}
	return nil
}

// View records one view and returns the new count. Posts viewer cannot open
// are NotFound, as in Get.
func (s *Service) View(ctx context.Context, viewer *auth.Identity, id primitive.ObjectID) (int64, error) {
	p, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return 0, storeErr(err, "post")
	}
	if !postpolicy.CanView(viewer, *p, s.now(), s.Options) {
		return 0, apperr.NotFound("post not found")
	}
	n, err := s.Posts.IncrementViews(ctx, id)
	if err != nil {
		return 0, storeErr(err, "post")
	}
	return n, nil
}

// Report flags a post. A repeated pending report by the same reporter returns
// the existing one with created=false.
func (s *Service) Report(ctx context.Context, viewer *auth.Identity, postID primitive.ObjectID, reason string) (models.Report, bool, error) {
	if err := requireWriter(viewer); err != nil {
		return models.Report{}, false, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultReportReason
	}
	if len(reason) > maxReasonLen {
		return models.Report{}, false, apperr.Validation("reason must be at most %d characters", maxReasonLen)
	}
	p, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return models.Report{}, false, storeErr(err, "post")
	}
	if !postpolicy.CanView(viewer, *p, s.now(), s.Options) {
		return models.Report{}, false, apperr.NotFound("post not found")
	}

	rep, created, err := s.Reports.Create(ctx, models.Report{
		PostID:     postID,
		ReporterID: viewer.UID,
		Reason:     reason,
		Status:     models.ReportPending,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return models.Report{}, false, storeErr(err, "report")
	}
	if created {
		s.publish(ctx, events.SubjectReportCreated, events.ReportCreated{
			ID:         rep.ID.Hex(),
			PostID:     rep.PostID.Hex(),
			ReporterID: rep.ReporterID.Hex(),
			Reason:     rep.Reason,
		})
	}
	return rep, created, nil
}

// ListReports lists reports newest first. status "" lists every report.
func (s *Service) ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error) {
	rs, err := s.Reports.List(ctx, status, ListLimit)
	if err != nil {
		return nil, storeErr(err, "report")
	}
	return rs, nil
}

// AllPosts lists every post with its status for the moderation screen.
func (s *Service) AllPosts(ctx context.Context) ([]View, error) {
	ps, err := s.Posts.All(ctx, ListLimit)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.views(ps, s.now()), nil
}

// Moderate approves a post and notifies its author. Approving an approved
// post changes nothing.
func (s *Service) Moderate(ctx context.Context, admin *auth.Identity, postID primitive.ObjectID) (View, error) {
	if !admin.IsAdmin() {
		return View{}, apperr.Forbidden("admin only")
	}
	cur, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return View{}, storeErr(err, "post")
	}
	now := s.now()
	if cur.Approved {
		return View{Post: *cur, Status: postpolicy.StatusOf(*cur, now)}, nil
	}
	p, err := s.Posts.Approve(ctx, postID)
	if err != nil {
		return View{}, storeErr(err, "post")
	}
	s.notify(ctx, p.AuthorID, "Post approved", "Your post \""+p.Title+"\" was approved.")
	return View{Post: *p, Status: postpolicy.StatusOf(*p, now)}, nil
}

// ResolveReport moves a pending report to resolved and notifies the
// reporter. Resolving a resolved report returns it unchanged.
func (s *Service) ResolveReport(ctx context.Context, admin *auth.Identity, reportID primitive.ObjectID) (models.Report, bool, error) {
	if !admin.IsAdmin() {
		return models.Report{}, false, apperr.Forbidden("admin only")
	}
	rep, changed, err := s.Reports.Resolve(ctx, reportID, admin.UID, s.now())
	if err != nil {
		return models.Report{}, false, storeErr(err, "report")
	}
	if changed {
		s.notify(ctx, rep.ReporterID, "Report resolved", "A post you reported has been reviewed by a moderator.")
	}
	return *rep, changed, nil
}

func (s *Service) checkText(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	var v inputval.Result
	v.Required("title", "Title", title)
	v.MaxLen("title", "Title", title, maxTitleLen)
	v.MaxLen("content", "Content", content, maxContentLen)
	if v.HasErrors() {
		return "", "", apperr.Validation("%s", v.First())
	}
	clean := strings.TrimSpace(htmlsanitize.Sanitize(content))
	// Terms are matched against the text a reader sees: markup removed and
	// character references decoded.
	plain := html.UnescapeString(htmlsanitize.PlainText(clean))
	if strings.TrimSpace(plain) == "" {
		return "", "", apperr.Validation("Content is required")
	}
	for _, text := range []string{title, html.UnescapeString(title), content, plain} {
		if s.Filter.Contains(text) {
			return "", "", apperr.Validation(disallowedTerms)
		}
	}
	return title, clean, nil
}

func checkTimes(scheduledAt, expiresAt *int64) error {
	if scheduledAt != nil && *scheduledAt <= 0 {
		return apperr.Validation("scheduledAt must be an epoch-millisecond time")
	}
	if expiresAt != nil && *expiresAt <= 0 {
		return apperr.Validation("expiresAt must be an epoch-millisecond time")
	}
	if scheduledAt != nil && expiresAt != nil && *expiresAt <= *scheduledAt {
		return apperr.Validation("expiresAt must be after scheduledAt")
	}
	return nil
}

func requireWriter(viewer *auth.Identity) error {
	if viewer == nil || viewer.UID.IsZero() {
		return apperr.Unauthorized("authentication required")
	}
	if !authz.CanWrite(viewer) {
		return apperr.Forbidden("account is suspended")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, subject string, v any) {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.Publish(ctx, subject, v); err != nil && s.Log != nil {
		s.Log.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, to primitive.ObjectID, title, body string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, []primitive.ObjectID{to}, title, body); err != nil && s.Log != nil {
		s.Log.Warn("notify failed", zap.String("user_id", to.Hex()), zap.Error(err))
	}
}

// storeErr translates a store error into an application error.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound(what + " not found")
	case retry.Transient(err):
		return apperr.Unavailable("database unavailable", err)
	default:
		return apperr.Internal(err)
	}
}

func parseHex(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid post id")
	}
	return id, nil
}
