package email

import "fmt"

// WelcomeTemplate renders the registration welcome email.
func WelcomeTemplate(name string) string {
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h2>Welcome, %s!</h2>
			<p>Your account has been created and you are signed in.</p>
			<p>If this wasn't you, please contact support immediately.</p>
		</div>`, name)
}

// SecurityAlertTemplate renders the sessions-signed-out notification.
func SecurityAlertTemplate(name, reason string) string {
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h2>Hi %s,</h2>
			<p>All sessions on your account were just signed out.</p>
			<p>Reason: %s</p>
			<p>If you did not request this, change your password now.</p>
		</div>`, name, reason)
}
