package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/storage"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
)

// workflowService is the concrete implementation of WorkflowService
type workflowService struct {
	repos  *repository.Repositories
	store  storage.AssetStore
	notify NotificationService
	engine *workflow.Engine
	cfg    *config.Config
	log    zerolog.Logger
}

// newWorkflowService creates a new WorkflowService
func newWorkflowService(repos *repository.Repositories, store storage.AssetStore, notify NotificationService, engine *workflow.Engine, cfg *config.Config, log zerolog.Logger) *workflowService {
	return &workflowService{
		repos:  repos,
		store:  store,
		notify: notify,
		engine: engine,
		cfg:    cfg,
		log:    log.With().Str("service", "workflow").Logger(),
	}
}

// Perform loads the post, applies the action and persists the result
func (s *workflowService) Perform(ctx context.Context, actor models.Actor, postID string, cmd workflow.Command) (*models.PostDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	cmd.Actor = actor
	fx, err := s.performWithRetry(ctx, postID, cmd)
	if err != nil {
		return nil, err
	}
	intents := fx.Notifications

	if fx.FollowUp != nil && fx.Post != nil {
		follow := *fx.FollowUp
		followFx, err := s.performWithRetry(ctx, postID, follow)
		if err != nil {
			// The primary change is already stored
			s.log.Warn().Err(err).
				Str("post_id", postID).
				Str("action", string(follow.Action)).
				Msg("Follow-up transition failed")
		} else {
			intents = append(intents, followFx.Notifications...)
			fx.Post = followFx.Post
		}
	}

	if len(intents) > 0 {
		s.notify.Notify(ctx, intents)
	}

	if fx.Post == nil {
		return nil, nil
	}
	return s.detail(fx.Post, actor), nil
}

// performWithRetry reruns the whole load, apply and persist cycle when a
// concurrent writer got in first
func (s *workflowService) performWithRetry(ctx context.Context, postID string, cmd workflow.Command) (*workflow.Effects, error) {
	op := string(cmd.Action)
	var fx *workflow.Effects
	var lastErr error

	_ = retry.Do(
		func() error {
			fx, lastErr = s.attempt(ctx, postID, cmd)
			return lastErr
		},
		retry.Attempts(uint(s.cfg.Workflow.ConflictRetries)+1),
		retry.Delay(20*time.Millisecond),
		retry.MaxDelay(200*time.Millisecond),
		retry.MaxJitter(30*time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, workflow.ErrVersionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug().Uint("attempt", n).Str("post_id", postID).Str("action", op).Msg("Retrying after concurrent update")
		}),
	)

	if lastErr == nil && ctx.Err() != nil && fx == nil {
		lastErr = ctx.Err()
	}
	if lastErr != nil {
		if errors.Is(lastErr, repository.ErrNotFound) {
			return nil, workflow.NotFound(op, "post not found")
		}
		return nil, workflow.Wrap(workflow.KindPersistence, op, lastErr)
	}

	s.log.Info().
		Str("post_id", postID).
		Str("action", op).
		Str("actor", cmd.Actor.UserID).
		Str("from", string(fx.From)).
		Str("to", string(fx.To)).
		Msg("Workflow action applied")
	return fx, nil
}

// attempt performs one optimistic round. Version conflicts are returned bare
// so the caller can retry them.
func (s *workflowService) attempt(ctx context.Context, postID string, cmd workflow.Command) (*workflow.Effects, error) {
	op := string(cmd.Action)

	post, err := s.repos.Post.GetByID(ctx, postID)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	fx, err := s.engine.Apply(post, cmd)
	if err != nil {
		return nil, err
	}

	switch fx.Mutation {
	case workflow.MutationNone:
	case workflow.MutationSave:
		err = s.repos.Post.Save(ctx, fx.Post, post.Version)
	case workflow.MutationAppendFeedback:
		fx.Post, err = s.repos.Post.AppendFeedback(ctx, postID, *fx.Feedback)
	case workflow.MutationMarkSeen:
		fx.Post, err = s.repos.Post.AddSeen(ctx, postID, cmd.Actor.UserID)
	case workflow.MutationArchive:
		fx.Post, err = s.repos.Post.AddArchived(ctx, postID, cmd.Actor.UserID)
	case workflow.MutationDelete:
		err = s.deletePost(ctx, post, fx.DeleteAssets)
	default:
		err = fmt.Errorf("unknown mutation %d", fx.Mutation)
	}
	if err != nil {
		return nil, err
	}
	return fx, nil
}

// deletePost removes every asset and then the record. Any asset failure
// aborts before the record is touched so nothing is orphaned.
func (s *workflowService) deletePost(ctx context.Context, post *models.Post, assets []string) error {
	for _, url := range assets {
		if err := s.store.Delete(ctx, url); err != nil {
			s.log.Error().Err(err).Str("post_id", post.ID).Str("url", url).Msg("Failed to delete media, keeping post")
			return workflow.Wrap(workflow.KindAsset, string(workflow.ActionDelete), err)
		}
	}
	return s.repos.Post.Delete(ctx, post.ID, post.DesignerID)
}

// UploadMedia stores the files and then runs the matching media action
func (s *workflowService) UploadMedia(ctx context.Context, actor models.Actor, postID string, files []models.MediaUpload) (*models.PostDetail, error) {
	action := workflow.ActionAttachMedia
	if actor.Role == models.RoleClient {
		action = workflow.ActionUploadMedia
	}
	op := string(action)

	// Reject early so nothing is uploaded for a request that cannot succeed
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	post, err := s.repos.Post.GetByID(lookupCtx, postID)
	cancel()
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	placeholders := make([]string, len(files))
	for i := range files {
		placeholders[i] = files[i].Filename + "#pending"
	}
	if _, err := s.engine.Apply(post, workflow.Command{Action: action, Actor: actor, MediaURLs: placeholders}); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.uploadOne(ctx, postID, f)
		if err != nil {
			s.discard(urls)
			return nil, workflow.Wrap(workflow.KindAsset, op, err)
		}
		urls = append(urls, url)
	}

	detail, err := s.Perform(ctx, actor, postID, workflow.Command{Action: action, MediaURLs: urls})
	if err != nil {
		s.discard(urls)
		return nil, err
	}
	return detail, nil
}

func (s *workflowService) uploadOne(ctx context.Context, postID string, f models.MediaUpload) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()
	return s.store.Upload(ctx, postID, f.Filename, f.ContentType, r)
}

// discard removes assets uploaded for a request that did not go through
func (s *workflowService) discard(urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Workflow.OperationTimeout)
	defer cancel()
	for _, url := range urls {
		if err := s.store.Delete(ctx, url); err != nil {
			s.log.Warn().Err(err).Str("url", url).Msg("Failed to remove orphaned upload")
		}
	}
}

// detail decorates post for actor
func (s *workflowService) detail(post *models.Post, actor models.Actor) *models.PostDetail {
	return buildDetail(s.engine, post, actor)
}

func buildDetail(engine *workflow.Engine, post *models.Post, actor models.Actor) *models.PostDetail {
	actions := engine.AvailableActions(post, actor)
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return &models.PostDetail{
		PostView:         viewFor(post, actor),
		AvailableActions: names,
	}
}

func viewFor(post *models.Post, actor models.Actor) models.PostView {
	return models.PostView{
		Post:      post.ViewFor(actor.Role),
		HasUnread: post.HasUnread(actor.UserID),
		Archived:  post.ArchivedFor(actor.UserID),
	}
}
