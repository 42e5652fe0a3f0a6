package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
	"github.com/sssm0ulder/astrobot-sub000/pkg/config"
)

// EmailNotifier sends operational alerts to the admin mailbox
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *zap.Logger
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{config: cfg, logger: logger}
}

// SendOpsAlert renders and sends an email for an operational alert
func (e *EmailNotifier) SendOpsAlert(alert *protocol.OpsAlert) error {
	var subject string
	var body string
	var err error

	switch alert.Type {
	case protocol.OpsSubscriptionExpiring:
		subject = fmt.Sprintf("Subscription expiring - user %d", alert.UserID)
		body, err = renderTemplate("expiring", expiringTemplate, alert)
	case protocol.OpsSchedulerFailure:
		subject = fmt.Sprintf("Scheduler failure - user %d", alert.UserID)
		body, err = renderTemplate("scheduler", failureTemplate, alert)
	case protocol.OpsEphemerisFailure:
		subject = "Ephemeris computation failure"
		body, err = renderTemplate("ephemeris", failureTemplate, alert)
	default:
		return fmt.Errorf("unknown alert type: %s", alert.Type)
	}

	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

const expiringTemplate = `
Subscription Expiring
=====================

User ID: {{.UserID}}
Detail: {{.Detail}}
Reported At: {{.At}}

The user's paid access (or trial period) is about to lapse. Scheduled
forecast delivery stops once access expires.

---
Astrobot Operations
`

const failureTemplate = `
Operational Failure
===================

Type: {{.Type}}
User ID: {{.UserID}}
Detail: {{.Detail}}
Reported At: {{.At}}

---
Astrobot Operations
`

func renderTemplate(name, text string, alert *protocol.OpsAlert) (string, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, alert); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		e.logger.Info("SMTP not configured, skipping email", zap.String("subject", subject))
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("alert email sent", zap.String("subject", subject))
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
