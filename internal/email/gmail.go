package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailProvider sends emails via the Gmail API as the authenticated account
type GmailProvider struct {
	service *gmail.Service
	log     zerolog.Logger
}

// NewGmailService builds a Gmail client from a credentials file, or from
// application default credentials when credentialsFile is empty
func NewGmailService(ctx context.Context, credentialsFile string) (*gmail.Service, error) {
	if credentialsFile != "" {
		return gmail.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(gmail.GmailSendScope))
	}
	return gmail.NewService(ctx, option.WithScopes(gmail.GmailSendScope))
}

// NewGmailProvider creates a new Gmail email provider
func NewGmailProvider(service *gmail.Service, log zerolog.Logger) *GmailProvider {
	return &GmailProvider{
		service: service,
		log:     log.With().Str("provider", "gmail").Logger(),
	}
}

// sanitizeHeader strips control characters so values cannot inject headers
func sanitizeHeader(s string) string {
	var out strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func buildMessage(to, subject, htmlBody string) string {
	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(to)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(subject)))
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

// Send sends an email via the Gmail API
func (g *GmailProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	raw := buildMessage(to, subject, htmlBody)

	return retry.Do(
		func() error {
			start := time.Now()
			_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
			if err != nil {
				g.log.Warn().Err(err).Str("to", to).Dur("duration", time.Since(start)).Msg("Gmail API send failed, will retry")
				return err
			}
			g.log.Info().Str("to", to).Dur("duration", time.Since(start)).Msg("Gmail API request completed")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.log.Info().Uint("attempt", n).Err(err).Msg("Retrying Gmail email send after error")
		}),
	)
}
