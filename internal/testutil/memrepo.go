package testutil

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/policy/postpolicy"
	accountstore "github.com/dalemusser/alumnihub/internal/app/store/accounts"
	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	tokenstore "github.com/dalemusser/alumnihub/internal/app/store/tokens"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// The Mem* types are in-memory stand-ins for the Mongo stores, used by
// feature tests that need no database. Misses return mongo.ErrNoDocuments
// like the real stores. Err, when set, is returned by every call.

// MemPosts is an in-memory post repository.
type MemPosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]models.Post
	Err   error
	// Writes counts successful Create/Update/Delete calls.
	Writes int
}

func NewMemPosts(seed ...models.Post) *MemPosts {
	m := &MemPosts{posts: map[primitive.ObjectID]models.Post{}}
	for _, p := range seed {
		m.posts[p.ID] = p
	}
	return m
}

func (m *MemPosts) Create(_ context.Context, p models.Post) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Post{}, m.Err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	m.posts[p.ID] = p
	m.Writes++
	return p, nil
}

func (m *MemPosts) GetByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &p, nil
}

func (m *MemPosts) Published(_ context.Context, q poststore.FeedQuery) ([]models.Post, error) {
	return m.filter(func(p models.Post) bool {
		if postpolicy.StatusOf(p, q.Now) != postpolicy.Published {
			return false
		}
		if q.Type != "" && p.Type != q.Type {
			return false
		}
		return !q.ApprovedOnly || p.Approved
	}, q.Limit)
}

func (m *MemPosts) All(_ context.Context, limit int64) ([]models.Post, error) {
	return m.filter(func(models.Post) bool { return true }, limit)
}

func (m *MemPosts) ByAuthor(_ context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	return m.filter(func(p models.Post) bool { return p.AuthorID == authorID }, 0)
}

// filter returns matching posts newest first, ties broken by id descending.
func (m *MemPosts) filter(keep func(models.Post) bool, limit int64) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Post{}
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemPosts) Update(_ context.Context, id primitive.ObjectID, upd models.PostUpdate, updatedAt int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Type != nil {
		p.Type = *upd.Type
	}
	if upd.Tags != nil {
		p.Tags = *upd.Tags
	}
	if upd.ScheduledAt != nil {
		v := *upd.ScheduledAt
		p.ScheduledAt = &v
	}
	if upd.ExpiresAt != nil {
		v := *upd.ExpiresAt
		p.ExpiresAt = &v
	}
	if upd.Draft != nil {
		p.Draft = *upd.Draft
	}
	p.UpdatedAt = updatedAt
	m.posts[id] = p
	m.Writes++
	return &p, nil
}

func (m *MemPosts) Approve(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	p.Approved = true
	m.posts[id] = p
	return &p, nil
}

func (m *MemPosts) IncrementViews(_ context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	p, ok := m.posts[id]
	if !ok {
		return 0, mongo.ErrNoDocuments
	}
	p.Views++
	m.posts[id] = p
	return p.Views, nil
}

func (m *MemPosts) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.posts[id]; !ok {
		return 0, nil
	}
	delete(m.posts, id)
	m.Writes++
	return 1, nil
}

// Len returns the number of stored posts.
func (m *MemPosts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

// MemReports is an in-memory report repository with the same pending
// de-duplication as the Mongo store.
type MemReports struct {
	mu      sync.Mutex
	reports []models.Report
	Err     error
}

func NewMemReports() *MemReports { return &MemReports{} }

func (m *MemReports) Create(_ context.Context, r models.Report) (models.Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Report{}, false, m.Err
	}
	for _, ex := range m.reports {
		if ex.Status == models.ReportPending && ex.PostID == r.PostID && ex.ReporterID == r.ReporterID {
			return ex, false, nil
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	m.reports = append(m.reports, r)
	return r, true, nil
}

func (m *MemReports) GetByID(_ context.Context, id primitive.ObjectID) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, r := range m.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *MemReports) List(_ context.Context, status models.ReportStatus, limit int64) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Report{}
	for i := len(m.reports) - 1; i >= 0; i-- {
		r := m.reports[i]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemReports) Resolve(_ context.Context, id, by primitive.ObjectID, at int64) (*models.Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	for i, r := range m.reports {
		if r.ID != id {
			continue
		}
		if r.Status == models.ReportResolved {
			return &r, false, nil
		}
		r.Status = models.ReportResolved
		r.ResolvedBy = &by
		r.ResolvedAt = &at
		m.reports[i] = r
		return &r, true, nil
	}
	return nil, false, mongo.ErrNoDocuments
}

// MemUsers is an in-memory profile repository. It also satisfies
// auth.ProfileFetcher.
type MemUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
	Err   error
}

func NewMemUsers(seed ...models.User) *MemUsers {
	m := &MemUsers{users: map[primitive.ObjectID]models.User{}}
	for _, u := range seed {
		m.Put(u)
	}
	return m
}

// Put stores u as-is, filling the folded name.
func (m *MemUsers) Put(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.DisplayNameCI = text.Fold(u.DisplayName)
	m.users[u.ID] = u
}

func (m *MemUsers) FetchProfile(ctx context.Context, uid primitive.ObjectID) (*models.User, error) {
	return m.GetByID(ctx, uid)
}

func (m *MemUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (m *MemUsers) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemUsers) Create(_ context.Context, u models.User, now int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.User{}, m.Err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, ex := range m.users {
		if ex.Email == u.Email {
			return models.User{}, userstore.ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Role = models.ParseRole(string(u.Role))
	u.DisplayNameCI = text.Fold(u.DisplayName)
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = u
	return u, nil
}

func (m *MemUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, upd models.ProfileUpdate, now int64) (*models.User, error) {
	return m.update(id, func(u *models.User) {
		if upd.DisplayName != nil {
			u.DisplayName = *upd.DisplayName
			u.DisplayNameCI = text.Fold(*upd.DisplayName)
		}
		if upd.Headline != nil {
			u.Headline = *upd.Headline
		}
		if upd.Bio != nil {
			u.Bio = *upd.Bio
		}
		if upd.PhotoURL != nil {
			u.PhotoURL = *upd.PhotoURL
		}
		u.UpdatedAt = now
	})
}

func (m *MemUsers) AdminUpdate(_ context.Context, id primitive.ObjectID, role *models.Role, suspended *bool, now int64) (*models.User, error) {
	return m.update(id, func(u *models.User) {
		if role != nil {
			u.Role = *role
		}
		if suspended != nil {
			u.Suspended = *suspended
		}
		u.UpdatedAt = now
	})
}

func (m *MemUsers) update(id primitive.ObjectID, fn func(*models.User)) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	fn(&u)
	m.users[id] = u
	return &u, nil
}

// List filters by role and name prefix and returns everything on one page.
func (m *MemUsers) List(_ context.Context, q userstore.ListQuery) ([]models.User, paging.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, paging.Page{}, m.Err
	}
	prefix := text.Fold(q.Search)
	out := []models.User{}
	for _, u := range m.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if prefix != "" && !strings.HasPrefix(u.DisplayNameCI, prefix) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayNameCI != out[j].DisplayNameCI {
			return out[i].DisplayNameCI < out[j].DisplayNameCI
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, paging.Page{}, nil
}

func (m *MemUsers) IDs(_ context.Context, role models.Role) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var ids []primitive.ObjectID
	for _, u := range m.users {
		if role == "" || u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// MemMessages is an in-memory message repository.
type MemMessages struct {
	mu   sync.Mutex
	msgs []models.Message
	Err  error
}

func NewMemMessages() *MemMessages { return &MemMessages{} }

func (m *MemMessages) Create(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Message{}, m.Err
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

// ListByRoom returns the newest limit messages of room in ascending order.
func (m *MemMessages) ListByRoom(_ context.Context, room string, limit int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Message{}
	for _, msg := range m.msgs {
		if msg.RoomID == room {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

// MemNotifications is an in-memory notification repository.
type MemNotifications struct {
	mu    sync.Mutex
	items []models.Notification
	Err   error
}

func NewMemNotifications() *MemNotifications { return &MemNotifications{} }

func (m *MemNotifications) CreateMany(_ context.Context, ns []models.Notification) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Notification, 0, len(ns))
	for _, n := range ns {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		m.items = append(m.items, n)
		out = append(out, n)
	}
	return out, nil
}

func (m *MemNotifications) ListForUser(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Notification{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemNotifications) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, n := range m.items {
		if n.ID == id && n.UserID == userID {
			m.items[i].Read = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *MemNotifications) ClearForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	kept := m.items[:0]
	var n int64
	for _, it := range m.items {
		if it.UserID == userID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	m.items = kept
	return n, nil
}

// MemObjects is a waffle in-memory storage.Store that also records each
// Put by key and content type. Err, when set, fails every Put.
type MemObjects struct {
	*storage.Memory

	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	Err     error
}

func NewMemObjects() *MemObjects {
	return &MemObjects{
		Memory:  storage.NewMemory(storage.MemoryConfig{BaseURL: "https://files.test"}),
		Objects: map[string][]byte{},
		Types:   map[string]string{},
	}
}

func (m *MemObjects) Put(ctx context.Context, key string, r io.Reader, opts *storage.PutOptions) error {
	if m.Err != nil {
		return m.Err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := m.Memory.PutBytes(ctx, key, b, opts); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = b
	if opts != nil {
		m.Types[key] = opts.ContentType
	}
	return nil
}

// MemAudit is an in-memory audit store.
type MemAudit struct {
	mu     sync.Mutex
	events []audit.Event
	Err    error
}

func NewMemAudit(seed ...audit.Event) *MemAudit {
	m := &MemAudit{}
	for _, e := range seed {
		_ = m.Log(context.Background(), e)
	}
	return m
}

func (m *MemAudit) Log(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MemAudit) Query(_ context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.match(f)
	if f.Offset > 0 {
		if f.Offset >= int64(len(out)) {
			return []audit.Event{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemAudit) Count(_ context.Context, f audit.QueryFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.match(f))), nil
}

// Types returns the event types logged so far, oldest first.
func (m *MemAudit) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// match returns the events selected by f, newest first.
func (m *MemAudit) match(f audit.QueryFilter) []audit.Event {
	out := []audit.Event{}
	for _, e := range m.events {
		switch {
		case f.Category != "" && e.Category != f.Category,
			f.EventType != "" && e.EventType != f.EventType,
			f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID),
			f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID),
			f.StartTime != nil && e.Timestamp.Before(*f.StartTime),
			f.EndTime != nil && e.Timestamp.After(*f.EndTime):
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// MemAccounts is an in-memory credential store. Hashes use bcrypt.MinCost.
type MemAccounts struct {
	mu    sync.Mutex
	accts map[primitive.ObjectID]models.Account
	Err   error
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{accts: map[primitive.ObjectID]models.Account{}}
}

func (m *MemAccounts) Create(_ context.Context, email, password string, now int64) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Account{}, m.Err
	}
	email = strings.TrimSpace(email)
	ci := text.Fold(email)
	for _, a := range m.accts {
		if a.EmailCI == ci {
			return models.Account{}, accountstore.ErrDuplicateEmail
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.Account{}, err
	}
	a := models.Account{
		ID:           primitive.NewObjectID(),
		Email:        email,
		EmailCI:      ci,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.accts[a.ID] = a
	return a, nil
}

func (m *MemAccounts) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accts, id)
	return nil
}

func (m *MemAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	ci := text.Fold(strings.TrimSpace(email))
	for _, a := range m.accts {
		if a.EmailCI == ci {
			return &a, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *MemAccounts) GetByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.accts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &a, nil
}

func (m *MemAccounts) Authenticate(ctx context.Context, email, password string) (*models.Account, bool, error) {
	a, err := m.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, accountstore.ErrInvalidCredentials
		}
		return nil, false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return a, true, accountstore.ErrInvalidCredentials
	}
	return a, true, nil
}

func (m *MemAccounts) SetPassword(_ context.Context, id primitive.ObjectID, password string, now int64) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	return m.update(id, func(a *models.Account) {
		a.PasswordHash = string(hash)
		a.UpdatedAt = now
	})
}

func (m *MemAccounts) MarkVerified(_ context.Context, id primitive.ObjectID, now int64) error {
	return m.update(id, func(a *models.Account) {
		a.EmailVerified = true
		a.UpdatedAt = now
	})
}

func (m *MemAccounts) update(id primitive.ObjectID, fn func(*models.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	a, ok := m.accts[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	fn(&a)
	m.accts[id] = a
	return nil
}

// MemTokens is an in-memory one-time token store. Raw tokens are kept in
// the clear.
type MemTokens struct {
	mu     sync.Mutex
	tokens map[string]tokenstore.Token
	Now    func() time.Time
	Err    error
}

func NewMemTokens() *MemTokens {
	return &MemTokens{tokens: map[string]tokenstore.Token{}, Now: time.Now}
}

func (m *MemTokens) Create(_ context.Context, purpose tokenstore.Purpose, userID primitive.ObjectID, email string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if ttl <= 0 {
		ttl = tokenstore.DefaultExpiry
	}
	now := m.Now()
	t := tokenstore.Token{
		ID:        primitive.NewObjectID(),
		Purpose:   purpose,
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	raw := t.ID.Hex() + "." + primitive.NewObjectID().Hex()
	m.tokens[raw] = t
	return raw, nil
}

func (m *MemTokens) Consume(_ context.Context, purpose tokenstore.Purpose, raw string) (*tokenstore.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	raw = strings.TrimSpace(raw)
	t, ok := m.tokens[raw]
	if !ok || t.Purpose != purpose || !t.ExpiresAt.After(m.Now()) {
		return nil, tokenstore.ErrNotFound
	}
	delete(m.tokens, raw)
	return &t, nil
}

// Len returns the number of unconsumed tokens.
func (m *MemTokens) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
