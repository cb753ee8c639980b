package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GianDevelops/corex-portal/internal/database"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const postColumns = `id, client_id, designer_id, status, platforms, caption, hashtags, media_urls,
	feedback, revision_count, seen_by, archived_by, scheduled_at, internal_notes, version,
	created_at, updated_at`

// postRepo is the concrete implementation of PostRepository
type postRepo struct {
	db *database.DB
}

// NewPostRepo creates a new post repository
func NewPostRepo(db *database.DB) PostRepository {
	return &postRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var feedback []byte
	var scheduledAt sql.NullTime

	err := row.Scan(
		&post.ID, &post.ClientID, &post.DesignerID, &post.Status,
		pq.Array(&post.Platforms), &post.Caption, &post.Hashtags, pq.Array(&post.MediaURLs),
		&feedback, &post.RevisionCount, pq.Array(&post.SeenBy), pq.Array(&post.ArchivedBy),
		&scheduledAt, &post.InternalNotes, &post.Version, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(feedback, &post.Feedback); err != nil {
		return nil, fmt.Errorf("decode feedback of post %s: %w", post.ID, err)
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time.UTC()
		post.ScheduledAt = &t
	}
	normalize(&post)
	return &post, nil
}

// normalize replaces nil collections so posts always encode as empty arrays
func normalize(p *models.Post) {
	if p.Platforms == nil {
		p.Platforms = []string{}
	}
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}
	if p.Feedback == nil {
		p.Feedback = []models.Feedback{}
	}
	if p.SeenBy == nil {
		p.SeenBy = []string{}
	}
	if p.ArchivedBy == nil {
		p.ArchivedBy = []string{}
	}
}

func encodeFeedback(fb []models.Feedback) ([]byte, error) {
	if fb == nil {
		fb = []models.Feedback{}
	}
	return json.Marshal(fb)
}

// Create inserts a new post at version 1
func (r *postRepo) Create(ctx context.Context, post *models.Post) error {
	normalize(post)
	feedback, err := encodeFeedback(post.Feedback)
	if err != nil {
		return err
	}
	post.Version = 1

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.ExecContext(ctx, query,
		post.ID, post.ClientID, post.DesignerID, post.Status,
		pq.Array(post.Platforms), post.Caption, post.Hashtags, pq.Array(post.MediaURLs),
		string(feedback), post.RevisionCount, pq.Array(post.SeenBy), pq.Array(post.ArchivedBy),
		post.ScheduledAt, post.InternalNotes, post.Version, post.CreatedAt, post.UpdatedAt,
	)
	return err
}

// BatchCreate inserts imported ideas using PostgreSQL COPY
func (r *postRepo) BatchCreate(ctx context.Context, posts []*models.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("posts",
		"id", "client_id", "designer_id", "status", "platforms", "caption", "hashtags",
		"media_urls", "feedback", "revision_count", "seen_by", "archived_by",
		"scheduled_at", "internal_notes", "version", "created_at", "updated_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, post := range posts {
		normalize(post)
		feedback, err := encodeFeedback(post.Feedback)
		if err != nil {
			return 0, err
		}
		post.Version = 1
		if _, err := stmt.ExecContext(ctx,
			post.ID, post.ClientID, post.DesignerID, string(post.Status),
			pq.Array(post.Platforms), post.Caption, post.Hashtags, pq.Array(post.MediaURLs),
			string(feedback), post.RevisionCount, pq.Array(post.SeenBy), pq.Array(post.ArchivedBy),
			post.ScheduledAt, post.InternalNotes, post.Version, post.CreatedAt, post.UpdatedAt,
		); err != nil {
			return 0, err
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(posts), nil
}

// GetByID retrieves a post by ID. Ids that are not UUIDs cannot exist.
func (r *postRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Save writes the whole document if nobody changed it since it was loaded
func (r *postRepo) Save(ctx context.Context, post *models.Post, expectedVersion int64) error {
	normalize(post)
	feedback, err := encodeFeedback(post.Feedback)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts SET
			client_id = $1, designer_id = $2, status = $3, platforms = $4, caption = $5,
			hashtags = $6, media_urls = $7, feedback = $8, revision_count = $9, seen_by = $10,
			archived_by = $11, scheduled_at = $12, internal_notes = $13, updated_at = $14,
			version = version + 1
		WHERE id = $15 AND version = $16
		RETURNING version
	`
	var version int64
	err = r.db.QueryRowContext(ctx, query,
		post.ClientID, post.DesignerID, post.Status, pq.Array(post.Platforms), post.Caption,
		post.Hashtags, pq.Array(post.MediaURLs), string(feedback), post.RevisionCount, pq.Array(post.SeenBy),
		pq.Array(post.ArchivedBy), post.ScheduledAt, post.InternalNotes, post.UpdatedAt,
		post.ID, expectedVersion,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return r.missOrConflict(ctx, post.ID)
	}
	if err != nil {
		return err
	}
	post.Version = version
	return nil
}

// AppendFeedback appends a comment without touching the rest of the document.
// Approved posts are closed for comments; the guard makes a racing approve win.
func (r *postRepo) AppendFeedback(ctx context.Context, id string, fb models.Feedback) (*models.Post, error) {
	entry, err := json.Marshal([]models.Feedback{fb})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE posts SET
			feedback = feedback || $2::jsonb,
			seen_by = ARRAY[$3]::text[],
			updated_at = $4,
			version = version + 1
		WHERE id = $1 AND status <> 'approved'
		RETURNING ` + postColumns
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, string(entry), fb.AuthorID, fb.Timestamp))
	if err == sql.ErrNoRows {
		return nil, r.missOrConflict(ctx, id)
	}
	return post, err
}

// AddSeen records that userID has viewed the post. It is a no-op when already recorded.
func (r *postRepo) AddSeen(ctx context.Context, id, userID string) (*models.Post, error) {
	query := `
		UPDATE posts SET
			seen_by = array_append(seen_by, $2::text),
			updated_at = $3,
			version = version + 1
		WHERE id = $1 AND NOT ($2::text = ANY(seen_by))
		RETURNING ` + postColumns
	return r.addToSet(ctx, query, id, userID, time.Now().UTC())
}

// AddArchived hides an approved post from userID's active lists
func (r *postRepo) AddArchived(ctx context.Context, id, userID string) (*models.Post, error) {
	query := `
		UPDATE posts SET
			archived_by = array_append(archived_by, $2::text),
			updated_at = $3,
			version = version + 1
		WHERE id = $1 AND status = 'approved' AND NOT ($2::text = ANY(archived_by))
		RETURNING ` + postColumns
	return r.addToSet(ctx, query, id, userID, time.Now().UTC())
}

func (r *postRepo) addToSet(ctx context.Context, query, id string, args ...any) (*models.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if err == sql.ErrNoRows {
		// Either already a member or gone
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return existing, nil
	}
	return post, err
}

// Delete removes the post record while it is still approved and archived by
// designerID. Seen markers or feedback landing in between do not block it.
func (r *postRepo) Delete(ctx context.Context, id, designerID string) error {
	query := `DELETE FROM posts WHERE id = $1 AND status = 'approved' AND $2::text = ANY(archived_by)`
	result, err := r.db.ExecContext(ctx, query, id, designerID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *postRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return workflow.ErrVersionConflict
}

// visibility builds the WHERE clause selecting posts actor may see
func visibility(actor models.Actor, filter models.PostFilter) (string, []any) {
	var where []string
	args := []any{actor.UserID}

	if actor.Role == models.RoleDesigner {
		where = append(where, "(designer_id = $1 OR (designer_id = '' AND status = 'post_idea'))")
		if filter.ClientID != "" {
			args = append(args, filter.ClientID)
			where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
		}
	} else {
		where = append(where, "client_id = $1")
	}

	if filter.Archived {
		where = append(where, "$1 = ANY(archived_by)")
	} else {
		where = append(where, "NOT ($1 = ANY(archived_by))")
	}
	return strings.Join(where, " AND "), args
}

// ListForUser returns the posts visible to actor, newest first
func (r *postRepo) ListForUser(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.Post, error) {
	where, args := visibility(actor, filter)
	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// StreamForUser streams every post visible to actor, archived included, oldest first
func (r *postRepo) StreamForUser(ctx context.Context, actor models.Actor, callback func(*models.Post) error) error {
	where := "client_id = $1"
	if actor.Role == models.RoleDesigner {
		where = "designer_id = $1"
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where + ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, actor.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return err
		}
		if err := callback(post); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountByStatus returns the number of posts in each status
func (r *postRepo) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM posts GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PostStatus]int, len(models.PostStatuses))
	for _, s := range models.PostStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status models.PostStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
