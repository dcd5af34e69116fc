package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/logging"
)

// EmailChannel delivers alerts over SMTP
type EmailChannel struct {
	logger *logging.Logger
	config config.EmailConfig
}

// NewEmailChannel creates an email notification channel
func NewEmailChannel(logger *logging.Logger, config config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		logger: logger,
		config: config,
	}
}

// Send sends the alert as a plain-text email
func (ec *EmailChannel) Send(ctx context.Context, alert Alert) error {
	if !ec.IsEnabled() {
		return fmt.Errorf("email configuration incomplete")
	}

	subject := ec.config.Subject
	if subject == "" {
		subject = fmt.Sprintf("Backup Verification Alert: %s", alert.Title)
	}

	var details strings.Builder
	for key, value := range alert.Details {
		fmt.Fprintf(&details, "  %s: %v\n", key, value)
	}

	body := fmt.Sprintf(`Backup Verification Alert

Alert ID: %s
Severity: %s
Time: %s

%s

%s
Details:
%s
This is an automated message from the backup verification system.
`, alert.ID, alert.Severity, alert.Timestamp.Format("2006-01-02 15:04:05"), alert.Title, alert.Message, details.String())

	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s",
		strings.Join(ec.config.To, ","), subject, body)

	var auth smtp.Auth
	if ec.config.Username != "" {
		auth = smtp.PlainAuth("", ec.config.Username, ec.config.Password, ec.config.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", ec.config.SMTPHost, ec.config.SMTPPort)

	if err := smtp.SendMail(addr, auth, ec.config.From, ec.config.To, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// GetType returns the channel type
func (ec *EmailChannel) GetType() string {
	return "email"
}

// IsEnabled checks if the channel is configured
func (ec *EmailChannel) IsEnabled() bool {
	return ec.config.SMTPHost != "" && len(ec.config.To) > 0
}
