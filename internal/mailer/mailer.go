// Package mailer delivers transactional email through the Mailgun HTTP API.
// Delivery is best-effort with a bounded number of retries; a terminal
// failure is returned to the caller instead of blocking the request.
package mailer

import (
	"context"
	"fmt"
	"time"

	"stack_tracker/internal/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	mailgunBaseURL = "https://api.mailgun.net/v3"

	// maxAttempts bounds delivery retries; backoff doubles from
	// initialBackoff between attempts.
	maxAttempts    = 3
	initialBackoff = time.Second
)

// Sender is the outbound-email collaborator of the auth workflow.
type Sender interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// Mailgun sends email through the Mailgun messages endpoint.
type Mailgun struct {
	client  *resty.Client
	domain  string
	from    string
	backoff time.Duration
	log     *logger.Logger
}

// NewMailgun creates a Mailgun sender for the given domain, authenticated
// with the provided API key.
func NewMailgun(apiKey, domain, from string, l *logger.Logger) *Mailgun {
	client := resty.New().
		SetBaseURL(mailgunBaseURL).
		SetBasicAuth("api", apiKey).
		SetTimeout(10 * time.Second)

	return &Mailgun{client: client, domain: domain, from: from, backoff: initialBackoff, log: l}
}

// SendConfirmation emails a confirmation link to the given address.
// It retries transient failures with exponential backoff and gives up after
// maxAttempts, honoring context cancellation between attempts.
func (m *Mailgun) SendConfirmation(ctx context.Context, to, link string) error {
	body := fmt.Sprintf("Welcome to StackTracker!\n\nPlease confirm your email address by visiting the link below:\n\n%s\n\nThe link expires in one hour.", link)

	var lastErr error
	backoff := m.backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := m.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"from":    m.from,
				"to":      to,
				"subject": "Confirm your StackTracker account",
				"text":    body,
			}).
			Post("/" + m.domain + "/messages")

		if err == nil && resp.IsSuccess() {
			m.log.Info("confirmation email sent", zap.String("to", to), zap.Int("attempt", attempt))
			return nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("mailer: mailgun responded %s", resp.Status())
		}
		m.log.Warn("confirmation email attempt failed",
			zap.String("to", to),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("mailer: delivery to %s failed after %d attempts: %w", to, maxAttempts, lastErr)
}
