package notifier

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"checkout-service/models"
)

//go:embed templates/*.html
var templateFS embed.FS

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if port == "" {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- smtp.SendMail(addr, auth, s.from, []string{to}, msg) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type emailTemplate struct {
	file    string
	subject string
}

var emailTemplates = map[models.EventType]emailTemplate{
	models.EventOrderCreated:     {file: "templates/order_created.html", subject: "Order received"},
	models.EventPaymentConfirmed: {file: "templates/payment_confirmed.html", subject: "Payment confirmed"},
	models.EventPaymentFailed:    {file: "templates/payment_failed.html", subject: "Payment failed"},
}

// EmailSink renders the event template and sends it, retrying up to
// three times.
type EmailSink struct {
	sender    EmailSender
	templates map[models.EventType]*template.Template
	backoff   time.Duration
	logger    *zap.Logger
}

func NewEmailSink(sender EmailSender, logger *zap.Logger) (*EmailSink, error) {
	tmpls := make(map[models.EventType]*template.Template, len(emailTemplates))
	for ev, cfg := range emailTemplates {
		t, err := template.ParseFS(templateFS, cfg.file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", ev, err)
		}
		tmpls[ev] = t
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSink{sender: sender, templates: tmpls, backoff: time.Second, logger: logger}, nil
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, ev models.PaymentEvent) error {
	if ev.Email == "" {
		return nil
	}
	tmpl, ok := s.templates[ev.Type]
	if !ok {
		return nil
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, ev); err != nil {
		return fmt.Errorf("template render failed: %w", err)
	}
	return s.sendWithRetry(ctx, ev, emailTemplates[ev.Type].subject, body.String())
}

func (s *EmailSink) sendWithRetry(ctx context.Context, ev models.PaymentEvent, subject, body string) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}

		if lastErr = s.sender.SendEmail(ctx, ev.Email, subject, body); lastErr == nil {
			return nil
		}
		s.logger.Warn("send attempt failed",
			zap.String("event", string(ev.Type)),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return lastErr
}
