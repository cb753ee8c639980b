package repository

import (
	"context"
	"errors"

	"github.com/GianDevelops/corex-portal/internal/database"
	"github.com/GianDevelops/corex-portal/internal/models"
)

// ErrNotFound is returned by writes that target a record which does not exist.
// Reads return nil, nil instead.
var ErrNotFound = errors.New("record not found")

// PostRepository defines the interface for post data operations.
// Every write bumps the post's version so conditional saves detect races.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	BatchCreate(ctx context.Context, posts []*models.Post) (int, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// Save replaces the post when its stored version still equals expectedVersion,
	// otherwise it returns workflow.ErrVersionConflict
	Save(ctx context.Context, post *models.Post, expectedVersion int64) error
	// AppendFeedback adds one entry and resets seenBy to its author
	AppendFeedback(ctx context.Context, id string, fb models.Feedback) (*models.Post, error)
	AddSeen(ctx context.Context, id, userID string) (*models.Post, error)
	AddArchived(ctx context.Context, id, userID string) (*models.Post, error)
	// Delete removes an approved post archived by designerID. Anything else is
	// reported as workflow.ErrVersionConflict so the caller re-checks the rules.
	Delete(ctx context.Context, id, designerID string) error
	ListForUser(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.Post, error)
	StreamForUser(ctx context.Context, actor models.Actor, callback func(*models.Post) error) error
	CountByStatus(ctx context.Context) (map[models.PostStatus]int, error)
}

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkRead flags the given notifications of userID as read and returns how many changed
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	// GetPendingEmail lists unsent notifications that failed fewer than maxAttempts times
	GetPendingEmail(ctx context.Context, limit, maxAttempts int) ([]*models.Notification, error)
	// ClaimForEmail atomically marks a notification as emailed; false means another worker got it
	ClaimForEmail(ctx context.Context, id string) (bool, error)
	// ReleaseEmailClaim returns a claimed notification to the queue and counts one failed attempt
	ReleaseEmailClaim(ctx context.Context, id string) error
}

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Post         PostRepository
	Notification NotificationRepository
	User         UserRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Post:         NewPostRepo(db),
		Notification: NewNotificationRepo(db),
		User:         NewUserRepo(db),
	}
}
