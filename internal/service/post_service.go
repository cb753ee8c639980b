package service

import (
	"context"
	"strings"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/validation"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// postService is the concrete implementation of PostService
type postService struct {
	repos  *repository.Repositories
	notify NotificationService
	engine *workflow.Engine
	cfg    *config.Config
	log    zerolog.Logger
}

// newPostService creates a new PostService
func newPostService(repos *repository.Repositories, notify NotificationService, engine *workflow.Engine, cfg *config.Config, log zerolog.Logger) *postService {
	return &postService{
		repos:  repos,
		notify: notify,
		engine: engine,
		cfg:    cfg,
		log:    log.With().Str("service", "post").Logger(),
	}
}

// Create stores a new idea or draft and tells the other party about it
func (s *postService) Create(ctx context.Context, actor models.Actor, req *models.CreatePostRequest) (*models.PostDetail, error) {
	const op = "create_post"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	if errs := validation.NewValidator().ValidateDraft(req, actor.Role); len(errs) > 0 {
		return nil, validationFailure(op, errs)
	}
	switch {
	case actor.Role == models.RoleDesigner:
		if err := s.requireRole(ctx, op, req.ClientID, models.RoleClient); err != nil {
			return nil, err
		}
	case req.DesignerID != "":
		// A named designer must be a real designer or the idea is stranded
		if err := s.requireRole(ctx, op, req.DesignerID, models.RoleDesigner); err != nil {
			return nil, err
		}
	}

	post, err := s.engine.NewPost(uuid.New().String(), actor, req)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Post.Create(ctx, post); err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}

	s.log.Info().
		Str("post_id", post.ID).
		Str("client_id", post.ClientID).
		Str("status", string(post.Status)).
		Str("actor", actor.UserID).
		Msg("Post created")

	s.notify.Notify(ctx, creationIntents(post, actor))
	return buildDetail(s.engine, post, actor), nil
}

// requireRole fails unless userID is a recorded user with the given role
func (s *postService) requireRole(ctx context.Context, op, userID string, role models.Role) error {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return workflow.Wrap(workflow.KindPersistence, op, err)
	}
	if user == nil || user.Role != role {
		return workflow.Validation(op, "unknown "+string(role))
	}
	return nil
}

// creationIntents tells the counterpart that something new landed on their board
func creationIntents(post *models.Post, actor models.Actor) []models.NotificationIntent {
	recipient := post.ClientID
	kind := "post"
	if post.Status == models.PostStatusIdea {
		kind = "idea"
	}
	if actor.UserID == post.ClientID {
		recipient = post.DesignerID
	}
	if recipient == "" || recipient == actor.UserID {
		return nil
	}
	name := strings.TrimSpace(actor.DisplayName)
	if name == "" {
		name = "Someone"
	}
	return []models.NotificationIntent{{
		RecipientID: recipient,
		PostID:      post.ID,
		Message:     name + " added a new " + kind + ": " + snippet(post.Caption),
	}}
}

func snippet(caption string) string {
	caption = strings.Join(strings.Fields(caption), " ")
	runes := []rune(caption)
	if len(runes) > 60 {
		return string(runes[:60]) + "…"
	}
	return caption
}

// Get returns one post if actor may see it
func (s *postService) Get(ctx context.Context, actor models.Actor, postID string) (*models.PostDetail, error) {
	const op = "get_post"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	post, err := s.repos.Post.GetByID(ctx, postID)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	if post == nil || !workflow.CanAccess(post, actor) {
		return nil, workflow.NotFound(op, "post not found")
	}
	return buildDetail(s.engine, post, actor), nil
}

// List returns actor's posts, newest first
func (s *postService) List(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]*models.PostView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	if actor.Role == models.RoleClient {
		filter.ClientID = ""
	}
	posts, err := s.repos.Post.ListForUser(ctx, actor, filter)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, "list_posts", err)
	}
	views := make([]*models.PostView, 0, len(posts))
	for _, p := range posts {
		v := viewFor(p, actor)
		views = append(views, &v)
	}
	return views, nil
}

// Board groups actor's posts into one column per status
func (s *postService) Board(ctx context.Context, actor models.Actor, filter models.PostFilter) (*models.Board, error) {
	views, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	board := &models.Board{Columns: make([]models.BoardColumn, 0, len(models.PostStatuses))}
	index := make(map[models.PostStatus]int, len(models.PostStatuses))
	for i, status := range models.PostStatuses {
		index[status] = i
		board.Columns = append(board.Columns, models.BoardColumn{
			Status: status,
			Label:  status.Label(),
			Posts:  []*models.PostView{},
		})
	}
	for _, v := range views {
		i, ok := index[v.Status]
		if !ok {
			continue
		}
		board.Columns[i].Posts = append(board.Columns[i].Posts, v)
		if v.HasUnread {
			board.Unread++
		}
	}
	return board, nil
}

// CountByStatus returns the number of posts in every status
func (s *postService) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	counts, err := s.repos.Post.CountByStatus(ctx)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, "count_posts", err)
	}
	return counts, nil
}

// validationFailure folds field errors into a single validation error
func validationFailure(op string, errs []validation.ValidationError) error {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return workflow.Validation(op, strings.Join(parts, "; "))
}
