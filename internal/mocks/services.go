package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/workflow"
)

// MockWorkflowService is a mock implementation of WorkflowService
type MockWorkflowService struct {
	PerformFunc func(ctx context.Context, actor models.Actor, postID string, cmd workflow.Command) (*models.PostDetail, error)
	UploadFunc  func(ctx context.Context, actor models.Actor, postID string, files []models.MediaUpload) (*models.PostDetail, error)
	Commands    []workflow.Command
}

// Verify interface compliance
var _ service.WorkflowService = (*MockWorkflowService)(nil)

func NewMockWorkflowService() *MockWorkflowService {
	return &MockWorkflowService{Commands: make([]workflow.Command, 0)}
}

func (m *MockWorkflowService) Perform(ctx context.Context, actor models.Actor, postID string, cmd workflow.Command) (*models.PostDetail, error) {
	cmd.Actor = actor
	m.Commands = append(m.Commands, cmd)
	if m.PerformFunc != nil {
		return m.PerformFunc(ctx, actor, postID, cmd)
	}
	return &models.PostDetail{PostView: models.PostView{Post: &models.Post{ID: postID}}}, nil
}

func (m *MockWorkflowService) UploadMedia(ctx context.Context, actor models.Actor, postID string, files []models.MediaUpload) (*models.PostDetail, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, actor, postID, files)
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, "https://media.test/"+f.Filename)
	}
	return &models.PostDetail{PostView: models.PostView{Post: &models.Post{ID: postID, MediaURLs: urls}}}, nil
}

// MockPostService is a mock implementation of PostService
type MockPostService struct {
	CreateFunc func(ctx context.Context, actor models.Actor, req *models.CreatePostRequest) (*models.PostDetail, error)
	GetFunc    func(ctx context.Context, actor models.Actor, postID string) (*models.PostDetail, error)
	ListFunc   func(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.PostView, error)
	BoardFunc  func(ctx context.Context, actor models.Actor, filter models.PostFilter) (*models.Board, error)
	ExportFunc func(ctx context.Context, actor models.Actor, w io.Writer, format string) (int, error)
	ImportFunc func(ctx context.Context, actor models.Actor, r io.Reader) (*models.ImportResult, error)
	Counts     map[models.PostStatus]int
}

// Verify interface compliance
var _ service.PostService = (*MockPostService)(nil)

func NewMockPostService() *MockPostService {
	return &MockPostService{Counts: make(map[models.PostStatus]int)}
}

func (m *MockPostService) Create(ctx context.Context, actor models.Actor, req *models.CreatePostRequest) (*models.PostDetail, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, actor, req)
	}
	return &models.PostDetail{PostView: models.PostView{Post: &models.Post{ID: "new-post", ClientID: req.ClientID, Caption: req.Caption}}}, nil
}

func (m *MockPostService) Get(ctx context.Context, actor models.Actor, postID string) (*models.PostDetail, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, actor, postID)
	}
	return nil, workflow.NotFound("get_post", "post not found")
}

func (m *MockPostService) List(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.PostView, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, actor, filter)
	}
	return []*models.PostView{}, nil
}

func (m *MockPostService) Board(ctx context.Context, actor models.Actor, filter models.PostFilter) (*models.Board, error) {
	if m.BoardFunc != nil {
		return m.BoardFunc(ctx, actor, filter)
	}
	return &models.Board{Columns: []models.BoardColumn{}}, nil
}

func (m *MockPostService) Export(ctx context.Context, actor models.Actor, w io.Writer, format string) (int, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, actor, w, format)
	}
	return 0, nil
}

func (m *MockPostService) ImportIdeas(ctx context.Context, actor models.Actor, r io.Reader) (*models.ImportResult, error) {
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, actor, r)
	}
	return &models.ImportResult{PostIDs: []string{}}, nil
}

func (m *MockPostService) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	return m.Counts, nil
}

// MockNotificationService is a mock implementation of NotificationService
type MockNotificationService struct {
	mu           sync.Mutex
	Intents      []models.NotificationIntent
	ListFunc     func(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) (*models.NotificationList, error)
	MarkReadFunc func(ctx context.Context, actor models.Actor, ids []string) (int, error)
}

// Verify interface compliance
var _ service.NotificationService = (*MockNotificationService)(nil)

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{Intents: make([]models.NotificationIntent, 0)}
}

func (m *MockNotificationService) Notify(ctx context.Context, intents []models.NotificationIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Intents = append(m.Intents, intents...)
}

func (m *MockNotificationService) List(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) (*models.NotificationList, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, actor, unreadOnly, limit)
	}
	return &models.NotificationList{Items: []*models.Notification{}}, nil
}

func (m *MockNotificationService) MarkRead(ctx context.Context, actor models.Actor, ids []string) (int, error) {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, actor, ids)
	}
	return len(ids), nil
}

func (m *MockNotificationService) StartProcessor(ctx context.Context) {}

func (m *MockNotificationService) StopProcessor() {}

func (m *MockNotificationService) Wait() {}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mu        sync.Mutex
	Recorded  []models.Actor
	RecordErr error
	Clients   []*models.User
}

// Verify interface compliance
var _ service.UserService = (*MockUserService)(nil)

func NewMockUserService() *MockUserService {
	return &MockUserService{Clients: []*models.User{}}
}

func (m *MockUserService) Record(ctx context.Context, actor models.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recorded = append(m.Recorded, actor)
	return m.RecordErr
}

func (m *MockUserService) ListClients(ctx context.Context) ([]*models.User, error) {
	return m.Clients, nil
}

// NewServices bundles fresh mock services
func NewServices() (*service.Services, *MockWorkflowService, *MockPostService, *MockNotificationService, *MockUserService) {
	wf := NewMockWorkflowService()
	posts := NewMockPostService()
	notes := NewMockNotificationService()
	users := NewMockUserService()
	return &service.Services{Workflow: wf, Post: posts, Notification: notes, User: users}, wf, posts, notes, users
}
