package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it again on the returned request adds further parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a profile with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, role models.Role) models.User {
	f.t.Helper()

	now := models.NowMillis()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Email:         email,
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreatePost inserts a published post. Options may adjust it before insert.
func (f *Fixtures) CreatePost(ctx context.Context, authorID primitive.ObjectID, title string, opts ...func(*models.Post)) models.Post {
	f.t.Helper()

	p := NewPost(authorID, title, opts...)
	if _, err := f.db.Collection("posts").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// NewPost builds a published job post without storing it.
func NewPost(authorID primitive.ObjectID, title string, opts ...func(*models.Post)) models.Post {
	now := models.NowMillis()
	p := models.Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   "<p>" + title + "</p>",
		Type:      models.PostJob,
		AuthorID:  authorID,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// ExpiredAt returns a post option that sets expiresAt to t.
func ExpiredAt(t time.Time) func(*models.Post) {
	ms := models.Millis(t)
	return func(p *models.Post) { p.ExpiresAt = &ms }
}

// ScheduledAt returns a post option that sets scheduledAt to t.
func ScheduledAt(t time.Time) func(*models.Post) {
	ms := models.Millis(t)
	return func(p *models.Post) { p.ScheduledAt = &ms }
}

// Drafted marks a post as a draft.
func Drafted(p *models.Post) { p.Draft = true }

// CreatedAt returns a post option that sets both timestamps to ms.
func CreatedAt(ms int64) func(*models.Post) {
	return func(p *models.Post) { p.CreatedAt, p.UpdatedAt = ms, ms }
}
