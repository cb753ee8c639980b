package service

import (
	"context"
	"sync"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/repository"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/rs/zerolog"
)

// profileRefresh is how long a recorded profile is trusted before it is written again
const profileRefresh = 10 * time.Minute

// userService is the concrete implementation of UserService
type userService struct {
	users   repository.UserRepository
	timeout time.Duration
	log     zerolog.Logger

	mu   sync.Mutex
	seen map[string]recorded
}

type recorded struct {
	actor models.Actor
	at    time.Time
}

// newUserService creates a new UserService
func newUserService(users repository.UserRepository, timeout time.Duration, log zerolog.Logger) *userService {
	return &userService{
		users:   users,
		timeout: timeout,
		log:     log.With().Str("service", "user").Logger(),
		seen:    make(map[string]recorded),
	}
}

// Record upserts the profile carried by actor's token. Repeated calls with an
// unchanged profile are skipped for a while.
func (s *userService) Record(ctx context.Context, actor models.Actor) error {
	s.mu.Lock()
	prev, ok := s.seen[actor.UserID]
	s.mu.Unlock()
	if ok && prev.actor == actor && time.Since(prev.at) < profileRefresh {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.users.Upsert(ctx, &models.User{
		ID:    actor.UserID,
		Email: actor.Email,
		Name:  actor.DisplayName,
		Role:  actor.Role,
	})
	if err != nil {
		return workflow.Wrap(workflow.KindPersistence, "record_user", err)
	}

	s.mu.Lock()
	s.seen[actor.UserID] = recorded{actor: actor, at: time.Now()}
	s.mu.Unlock()
	return nil
}

// ListClients returns every known client, for designers picking who a post is for
func (s *userService) ListClients(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	users, err := s.users.ListByRole(ctx, models.RoleClient)
	if err != nil {
		return nil, workflow.Wrap(workflow.KindPersistence, "list_clients", err)
	}
	return users, nil
}
