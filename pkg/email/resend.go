package email

import (
	"context"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

// ResendMailer implements Mailer using Resend
type ResendMailer struct {
	client *resend.Client
	config *Config
}

// NewResendMailer creates a new Resend-backed mailer
func NewResendMailer(config *Config) (*ResendMailer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return &ResendMailer{
		client: resend.NewClient(config.APIKey),
		config: config,
	}, nil
}

func (m *ResendMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromEmail),
		To:      []string{to},
		Subject: "Welcome!",
		Html:    WelcomeTemplate(name),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("Failed to send welcome email to %s: %v", to, err)
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	log.Printf("Welcome email sent to %s (ID: %s)", to, sent.Id)
	return nil
}

func (m *ResendMailer) SendSecurityAlertEmail(ctx context.Context, to, name, reason string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromEmail),
		To:      []string{to},
		Subject: "Security alert: your sessions were signed out",
		Html:    SecurityAlertTemplate(name, reason),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("Failed to send security alert email to %s: %v", to, err)
		return fmt.Errorf("failed to send security alert email: %w", err)
	}

	log.Printf("Security alert email sent to %s (ID: %s)", to, sent.Id)
	return nil
}
