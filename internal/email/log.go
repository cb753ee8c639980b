package email

import (
	"context"

	"github.com/rs/zerolog"
)

// LogProvider writes emails to the log instead of sending them, for local development
type LogProvider struct {
	log zerolog.Logger
}

// NewLogProvider creates a new logging email provider
func NewLogProvider(log zerolog.Logger) *LogProvider {
	return &LogProvider{log: log.With().Str("provider", "log").Logger()}
}

// Send logs the email
func (p *LogProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_length", len(htmlBody)).
		Msg("Email not sent, log provider active")
	return nil
}
