package service

import (
	"context"
	"io"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/storage"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/rs/zerolog"
)

// WorkflowService runs workflow actions against stored posts
type WorkflowService interface {
	// Perform applies cmd to the post and persists the outcome. The returned
	// detail is nil when the post was deleted.
	Perform(ctx context.Context, actor models.Actor, postID string, cmd workflow.Command) (*models.PostDetail, error)
	// UploadMedia stores files and attaches them to the post. Clients answer a
	// media request, designers attach their own work.
	UploadMedia(ctx context.Context, actor models.Actor, postID string, files []models.MediaUpload) (*models.PostDetail, error)
}

// PostService defines post creation, listing and bulk transfer
type PostService interface {
	Create(ctx context.Context, actor models.Actor, req *models.CreatePostRequest) (*models.PostDetail, error)
	Get(ctx context.Context, actor models.Actor, postID string) (*models.PostDetail, error)
	List(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.PostView, error)
	Board(ctx context.Context, actor models.Actor, filter models.PostFilter) (*models.Board, error)
	Export(ctx context.Context, actor models.Actor, w io.Writer, format string) (int, error)
	ImportIdeas(ctx context.Context, actor models.Actor, r io.Reader) (*models.ImportResult, error)
	CountByStatus(ctx context.Context) (map[models.PostStatus]int, error)
}

// NotificationService delivers notifications in-app and by email
type NotificationService interface {
	// Notify records intents without blocking the caller. Failures are logged.
	Notify(ctx context.Context, intents []models.NotificationIntent)
	List(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) (*models.NotificationList, error)
	MarkRead(ctx context.Context, actor models.Actor, ids []string) (int, error)
	StartProcessor(ctx context.Context)
	StopProcessor()
	// Wait blocks until every in-flight Notify call has finished
	Wait()
}

// UserService keeps user profiles in sync with verified tokens
type UserService interface {
	Record(ctx context.Context, actor models.Actor) error
	ListClients(ctx context.Context) ([]*models.User, error)
}

// Mailer sends a notification email to a user
type Mailer interface {
	SendNotification(ctx context.Context, to *models.User, n *models.Notification) error
}

// Services holds all service interfaces
type Services struct {
	Workflow     WorkflowService
	Post         PostService
	Notification NotificationService
	User         UserService
}

// PolicyFromConfig translates configured workflow rules for the engine
func PolicyFromConfig(cfg *config.WorkflowConfig) workflow.Policy {
	return workflow.Policy{
		RevisionCap:                    cfg.RevisionCap,
		ClientFeedbackRequestsRevision: cfg.FeedbackPolicy == config.FeedbackPolicyRequestRevision,
	}
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, store storage.AssetStore, mailer Mailer, engine *workflow.Engine, cfg *config.Config, log zerolog.Logger) *Services {
	notifySvc := newNotificationService(repos, mailer, cfg, log)
	workflowSvc := newWorkflowService(repos, store, notifySvc, engine, cfg, log)
	postSvc := newPostService(repos, notifySvc, engine, cfg, log)
	userSvc := newUserService(repos.User, cfg.Workflow.OperationTimeout, log)

	return &Services{
		Workflow:     workflowSvc,
		Post:         postSvc,
		Notification: notifySvc,
		User:         userSvc,
	}
}
