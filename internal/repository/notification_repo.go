package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/GianDevelops/corex-portal/internal/database"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/lib/pq"
)

const notificationColumns = `id, user_id, post_id, message, read, emailed_at, email_attempts, created_at`

// notificationRepo is the concrete implementation of NotificationRepository
type notificationRepo struct {
	db *database.DB
}

// NewNotificationRepo creates a new notification repository
func NewNotificationRepo(db *database.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var emailedAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &n.PostID, &n.Message, &n.Read, &emailedAt, &n.EmailAttempts, &n.CreatedAt); err != nil {
		return nil, err
	}
	if emailedAt.Valid {
		n.EmailedAt = &emailedAt.Time
	}
	return &n, nil
}

// Create inserts a new notification
func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, post_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.PostID, n.Message, n.Read, n.CreatedAt)
	return err
}

// ListForUser returns userID's notifications, newest first
func (r *notificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND NOT read"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns how many notifications userID has not read
func (r *notificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read", userID).Scan(&count)
	return count, err
}

// MarkRead flags notifications as read in a single statement.
// Ids that belong to someone else are silently ignored.
func (r *notificationRepo) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id::text = ANY($2) AND NOT read`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// GetPendingEmail retrieves notifications that have not been emailed yet and
// have failed fewer than maxAttempts times. ClaimForEmail decides who sends them.
func (r *notificationRepo) GetPendingEmail(ctx context.Context, limit, maxAttempts int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications WHERE emailed_at IS NULL AND email_attempts < $2
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			continue
		}
		pending = append(pending, n)
	}
	return pending, rows.Err()
}

// ClaimForEmail atomically marks a notification as emailed
func (r *notificationRepo) ClaimForEmail(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET emailed_at = $1 WHERE id = $2 AND emailed_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ReleaseEmailClaim puts a notification back in the email queue after a failed send
// and counts the failure
func (r *notificationRepo) ReleaseEmailClaim(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET emailed_at = NULL, email_attempts = email_attempts + 1 WHERE id = $1`,
		id,
	)
	return err
}
