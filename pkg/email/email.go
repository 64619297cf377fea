package email

import "context"

// Mailer sends account-lifecycle notifications. All sends are best effort:
// callers log failures and move on, a mail outage must never block auth.
type Mailer interface {
	// SendWelcomeEmail greets a newly registered user.
	SendWelcomeEmail(ctx context.Context, to, name string) error

	// SendSecurityAlertEmail notifies the user that their sessions were
	// signed out (explicit sign-out-everywhere or a reuse lockout).
	SendSecurityAlertEmail(ctx context.Context, to, name, reason string) error
}

// Config holds mail service configuration.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}
