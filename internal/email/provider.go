// Package email delivers notification emails through a pluggable provider.
package email

import (
	"context"
	"strings"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/rs/zerolog"
)

// Provider defines the interface for email sending implementations
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender renders notifications and hands them to a provider
type Sender struct {
	provider Provider
	log      zerolog.Logger
	baseURL  string // for links back to the portal
}

// New creates a new email sender with the given provider
func New(provider Provider, baseURL string, log zerolog.Logger) *Sender {
	return &Sender{
		provider: provider,
		log:      log.With().Str("component", "email").Logger(),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// SendNotification emails a portal notification to its recipient
func (s *Sender) SendNotification(ctx context.Context, to *models.User, n *models.Notification) error {
	subject := subjectFor(n)
	body := s.formatNotificationBody(to, n)

	s.log.Info().
		Str("to", to.Email).
		Str("notification_id", n.ID).
		Str("post_id", n.PostID).
		Msg("Sending notification email")

	return s.provider.Send(ctx, to.Email, subject, body)
}
