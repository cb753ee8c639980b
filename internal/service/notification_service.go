package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
	emailBatchSize           = 50
)

// notificationService is the concrete implementation of NotificationService
type notificationService struct {
	repos  *repository.Repositories
	mailer Mailer
	cfg    *config.Config
	log    zerolog.Logger

	// in-app dispatch
	dispatchWG  sync.WaitGroup
	dispatchSem chan struct{}

	// email processor
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	sem     chan struct{}
}

// newNotificationService creates a new NotificationService
func newNotificationService(repos *repository.Repositories, mailer Mailer, cfg *config.Config, log zerolog.Logger) *notificationService {
	maxWorkers := cfg.Email.MaxConcurrency
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	dispatchWorkers := runtime.NumCPU() * 4
	if dispatchWorkers < 4 {
		dispatchWorkers = 4
	}
	if dispatchWorkers > 32 {
		dispatchWorkers = 32
	}

	log.Info().
		Int("email_workers", maxWorkers).
		Int("dispatch_workers", dispatchWorkers).
		Msg("Initializing notification service")

	return &notificationService{
		repos:       repos,
		mailer:      mailer,
		cfg:         cfg,
		log:         log.With().Str("service", "notification").Logger(),
		dispatchSem: make(chan struct{}, dispatchWorkers),
		sem:         make(chan struct{}, maxWorkers),
	}
}

// Notify stores each intent in the background. The caller's cancellation is
// ignored so a finished request does not drop its notifications.
func (s *notificationService) Notify(ctx context.Context, intents []models.NotificationIntent) {
	if len(intents) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	for _, intent := range intents {
		if intent.RecipientID == "" {
			continue
		}
		n := &models.Notification{
			ID:        uuid.New().String(),
			UserID:    intent.RecipientID,
			PostID:    intent.PostID,
			Message:   intent.Message,
			CreatedAt: time.Now().UTC(),
		}

		s.dispatchWG.Add(1)
		go func(n *models.Notification) {
			defer s.dispatchWG.Done()
			s.dispatchSem <- struct{}{}
			defer func() { <-s.dispatchSem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Str("post_id", n.PostID).Msg("Notification dispatch panicked - recovered")
				}
			}()

			ctx, cancel := context.WithTimeout(base, s.cfg.Workflow.OperationTimeout)
			defer cancel()
			if err := s.repos.Notification.Create(ctx, n); err != nil {
				err = workflow.Wrap(workflow.KindNotification, "notify", err)
				s.log.Error().Err(err).
					Str("recipient", n.UserID).
					Str("post_id", n.PostID).
					Msg("Failed to store notification")
				return
			}
			s.log.Debug().Str("recipient", n.UserID).Str("post_id", n.PostID).Msg("Notification stored")
		}(n)
	}
}

// Wait blocks until every dispatched notification has been handled
func (s *notificationService) Wait() {
	s.dispatchWG.Wait()
}

// List returns actor's newest notifications and the unread count
func (s *notificationService) List(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) (*models.NotificationList, error) {
	const op = "list_notifications"
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	items, err := s.repos.Notification.ListForUser(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	unread, err := s.repos.Notification.UnreadCount(ctx, actor.UserID)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	return &models.NotificationList{Items: items, Unread: unread}, nil
}

// MarkRead flags actor's notifications as read. Unknown ids are ignored.
func (s *notificationService) MarkRead(ctx context.Context, actor models.Actor, ids []string) (int, error) {
	const op = "mark_read"
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, workflow.Validation(op, "no notification ids given")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	n, err := s.repos.Notification.MarkRead(ctx, actor.UserID, unique)
	if err != nil {
		return 0, workflow.Wrap(workflow.KindPersistence, op, err)
	}
	return n, nil
}

// StartProcessor starts the background email sender. It blocks until the
// context is cancelled or StopProcessor is called.
func (s *notificationService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.cfg.Email.PollInterval).Msg("Email processor started")

	ticker := time.NewTicker(s.cfg.Email.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Email processor stopping")
			return
		case <-ticker.C:
			s.processPendingEmails()
		}
	}
}

// StopProcessor stops the email sender and waits for in-flight sends
func (s *notificationService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Email processor stopped")
}

// processPendingEmails sends every notification that has not been emailed
func (s *notificationService) processPendingEmails() {
	pending, err := s.repos.Notification.GetPendingEmail(s.ctx, emailBatchSize, s.cfg.Email.MaxAttempts)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending emails")
		return
	}

	for _, n := range pending {
		// Blocks when every worker is busy
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		claimed, err := s.repos.Notification.ClaimForEmail(s.ctx, n.ID)
		if err != nil || !claimed {
			<-s.sem
			continue
		}

		s.wg.Add(1)
		go func(n *models.Notification) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("notification_id", n.ID).
						Msg("Email sending panicked - recovered")
					s.release(n.ID)
				}
			}()
			s.sendEmail(n)
		}(n)
	}
}

// sendEmail delivers one claimed notification, handing it back on failure
func (s *notificationService) sendEmail(n *models.Notification) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Workflow.OperationTimeout)
	defer cancel()

	user, err := s.repos.User.GetByID(ctx, n.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("notification_id", n.ID).Msg("Failed to load recipient")
		s.release(n.ID)
		return
	}
	if user == nil || user.Email == "" {
		s.log.Warn().Str("notification_id", n.ID).Str("user_id", n.UserID).Msg("Recipient has no email address, skipping")
		return
	}

	if err := s.mailer.SendNotification(ctx, user, n); err != nil {
		if !retry.IsRecoverable(err) {
			// The claim is kept so the email is never attempted again
			s.log.Error().Err(err).Str("notification_id", n.ID).Msg("Notification email rejected, giving up")
			return
		}
		s.log.Error().Err(err).
			Str("notification_id", n.ID).
			Int("attempt", n.EmailAttempts+1).
			Msg("Failed to send notification email")
		s.release(n.ID)
		if n.EmailAttempts+1 >= s.cfg.Email.MaxAttempts {
			s.log.Warn().Str("notification_id", n.ID).Msg("Notification email attempts exhausted, giving up")
		}
	}
}

func (s *notificationService) release(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repos.Notification.ReleaseEmailClaim(ctx, id); err != nil {
		s.log.Error().Err(err).Str("notification_id", id).Msg("Failed to release email claim")
	}
}
