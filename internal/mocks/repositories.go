package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/workflow"
)

// NewRepositories bundles fresh mock repositories
func NewRepositories() (*repository.Repositories, *MockPostRepository, *MockNotificationRepository, *MockUserRepository) {
	posts := NewMockPostRepository()
	notifications := NewMockNotificationRepository()
	users := NewMockUserRepository()
	return &repository.Repositories{Post: posts, Notification: notifications, User: users}, posts, notifications, users
}

// MockPostRepository is an in-memory PostRepository with the same version
// semantics as the database
type MockPostRepository struct {
	mu    sync.Mutex
	Posts map[string]*models.Post

	GetError        error
	InsertError     error
	SaveFunc        func(ctx context.Context, post *models.Post, expectedVersion int64) error
	DeleteFunc      func(ctx context.Context, id, designerID string) error
	BatchCreateFunc func(ctx context.Context, posts []*models.Post) (int, error)
	SaveCalls       int
	ConflictCount   int
	Log             *CallLog
}

var _ repository.PostRepository = (*MockPostRepository)(nil)

func NewMockPostRepository() *MockPostRepository {
	return &MockPostRepository{Posts: make(map[string]*models.Post)}
}

// Put stores post as is, for seeding tests
func (m *MockPostRepository) Put(post *models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.Version == 0 {
		post.Version = 1
	}
	m.Posts[post.ID] = post.Clone()
}

// Snapshot returns a copy of the stored post, or nil
func (m *MockPostRepository) Snapshot(id string) *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Posts[id]; ok {
		return p.Clone()
	}
	return nil
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	post.Version = 1
	m.Put(post)
	return nil
}

func (m *MockPostRepository) BatchCreate(ctx context.Context, posts []*models.Post) (int, error) {
	if m.BatchCreateFunc != nil {
		return m.BatchCreateFunc(ctx, posts)
	}
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, p := range posts {
		p.Version = 1
		m.Put(p)
	}
	return len(posts), nil
}

func (m *MockPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Snapshot(id), nil
}

func (m *MockPostRepository) Save(ctx context.Context, post *models.Post, expectedVersion int64) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, post, expectedVersion); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Log.Record("post.save:" + post.ID)
	current, ok := m.Posts[post.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		m.ConflictCount++
		return workflow.ErrVersionConflict
	}
	post.Version = expectedVersion + 1
	m.Posts[post.ID] = post.Clone()
	return nil
}

func (m *MockPostRepository) AppendFeedback(ctx context.Context, id string, fb models.Feedback) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Log.Record("post.feedback:" + id)
	current, ok := m.Posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if current.Status == models.PostStatusApproved {
		m.ConflictCount++
		return nil, workflow.ErrVersionConflict
	}
	current.Feedback = append(current.Feedback, fb)
	current.SeenBy = []string{fb.AuthorID}
	current.UpdatedAt = fb.Timestamp
	current.Version++
	return current.Clone(), nil
}

func (m *MockPostRepository) AddSeen(ctx context.Context, id, userID string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.Posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !current.SeenFor(userID) {
		current.SeenBy = append(current.SeenBy, userID)
		current.UpdatedAt = time.Now().UTC()
		current.Version++
	}
	return current.Clone(), nil
}

func (m *MockPostRepository) AddArchived(ctx context.Context, id, userID string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.Posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if current.Status == models.PostStatusApproved && !current.ArchivedFor(userID) {
		current.ArchivedBy = append(current.ArchivedBy, userID)
		current.UpdatedAt = time.Now().UTC()
		current.Version++
	}
	return current.Clone(), nil
}

func (m *MockPostRepository) Delete(ctx context.Context, id, designerID string) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, id, designerID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Log.Record("post.delete:" + id)
	current, ok := m.Posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != models.PostStatusApproved || !current.ArchivedFor(designerID) {
		m.ConflictCount++
		return workflow.ErrVersionConflict
	}
	delete(m.Posts, id)
	return nil
}

func (m *MockPostRepository) visible(p *models.Post, actor models.Actor, filter models.PostFilter) bool {
	if p.ArchivedFor(actor.UserID) != filter.Archived {
		return false
	}
	if actor.Role == models.RoleClient {
		return p.ClientID == actor.UserID
	}
	if filter.ClientID != "" && p.ClientID != filter.ClientID {
		return false
	}
	return p.DesignerID == actor.UserID || (p.DesignerID == "" && p.Status == models.PostStatusIdea)
}

func (m *MockPostRepository) sorted() []*models.Post {
	out := make([]*models.Post, 0, len(m.Posts))
	for _, p := range m.Posts {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MockPostRepository) ListForUser(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.Post, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	all := m.sorted()
	m.mu.Unlock()

	out := []*models.Post{}
	for i := len(all) - 1; i >= 0; i-- {
		if m.visible(all[i], actor, filter) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (m *MockPostRepository) StreamForUser(ctx context.Context, actor models.Actor, callback func(*models.Post) error) error {
	m.mu.Lock()
	all := m.sorted()
	m.mu.Unlock()

	for _, p := range all {
		owner := p.ClientID
		if actor.Role == models.RoleDesigner {
			owner = p.DesignerID
		}
		if owner != actor.UserID {
			continue
		}
		if err := callback(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockPostRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.PostStatus]int, len(models.PostStatuses))
	for _, s := range models.PostStatuses {
		counts[s] = 0
	}
	for _, p := range m.Posts {
		counts[p.Status]++
	}
	return counts, nil
}

// MockNotificationRepository is an in-memory NotificationRepository
type MockNotificationRepository struct {
	mu            sync.Mutex
	Notifications []*models.Notification
	CreateFunc    func(ctx context.Context, n *models.Notification) error
	ReleaseCalls  int
}

var _ repository.NotificationRepository = (*MockNotificationRepository)(nil)

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{Notifications: make([]*models.Notification, 0)}
}

// All returns a copy of every stored notification in insertion order
func (m *MockNotificationRepository) All() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, 0, len(m.Notifications))
	for _, n := range m.Notifications {
		out = append(out, *n)
	}
	return out
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *n
	m.Notifications = append(m.Notifications, &c)
	return nil
}

func (m *MockNotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Notification{}
	for i := len(m.Notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.Notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockNotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.Notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	changed := 0
	for _, n := range m.Notifications {
		if n.UserID == userID && wanted[n.ID] && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (m *MockNotificationRepository) GetPendingEmail(ctx context.Context, limit, maxAttempts int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Notification
	for _, n := range m.Notifications {
		if n.EmailedAt == nil && n.EmailAttempts < maxAttempts && len(pending) < limit {
			c := *n
			pending = append(pending, &c)
		}
	}
	return pending, nil
}

func (m *MockNotificationRepository) ClaimForEmail(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.Notifications {
		if n.ID == id && n.EmailedAt == nil {
			now := time.Now().UTC()
			n.EmailedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *MockNotificationRepository) ReleaseEmailClaim(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	for _, n := range m.Notifications {
		if n.ID == id {
			n.EmailedAt = nil
			n.EmailAttempts++
		}
	}
	return nil
}

// MockUserRepository is an in-memory UserRepository
type MockUserRepository struct {
	mu          sync.Mutex
	Users       map[string]*models.User
	UpsertError error
	UpsertCalls int
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[string]*models.User)}
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertError != nil {
		return m.UpsertError
	}
	c := *user
	m.Users[user.ID] = &c
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.Users {
		if u.Role == role {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
