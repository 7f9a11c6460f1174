// Package notification renders patient-facing email templates and delivers
// them through an EmailSender with bounded retries.
package notification

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Template IDs used by the lifecycle and survey services.
const (
	TemplateCheckupApproved  = "checkup-approved"
	TemplateCheckupCancelled = "checkup-cancelled"
	TemplateCheckupCompleted = "checkup-completed"
	TemplatePostVisitSurvey  = "post-visit-survey"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders. Placeholders without data are
// left in place.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateCheckupApproved,
			Subject: "Your health check {{code}} has been reviewed",
			Body:    "Dear {{patient_name}}, your health check {{code}} has been approved. {{follow_up}}",
		},
		{
			ID:      TemplateCheckupCancelled,
			Subject: "Your health check {{code}} was cancelled",
			Body:    "Dear {{patient_name}}, your health check {{code}} was cancelled. Reason: {{reason}}",
		},
		{
			ID:      TemplateCheckupCompleted,
			Subject: "Your health check {{code}} is complete",
			Body:    "Dear {{patient_name}}, the follow-up for health check {{code}} is complete. Thank you for visiting us.",
		},
		{
			ID:      TemplatePostVisitSurvey,
			Subject: "How was your visit?",
			Body:    "Dear {{patient_name}}, please tell us about your visit ({{code}}) before {{expires}}: {{link}}",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

func (e *TemplateEngine) Render(id string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", id)
	}
	subject, body = t.Subject, t.Body
	for k, v := range data {
		ph := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, ph, v)
		body = strings.ReplaceAll(body, ph, v)
	}
	return subject, strings.TrimSpace(body), nil
}

// Dispatcher renders a template and hands it to the sender, retrying failed
// sends with linear backoff while ctx allows.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
	attempts  int
	backoff   time.Duration
	logger    zerolog.Logger
}

func NewDispatcher(sender EmailSender, templates *TemplateEngine) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		templates: templates,
		attempts:  3,
		backoff:   200 * time.Millisecond,
		logger:    zerolog.Nop(),
	}
}

func (d *Dispatcher) SetLogger(l zerolog.Logger) { d.logger = l }

// SetRetry sets the number of send attempts and the delay step between them.
func (d *Dispatcher) SetRetry(attempts int, backoff time.Duration) {
	d.attempts = max(attempts, 1)
	d.backoff = backoff
}

func (d *Dispatcher) SendTemplate(ctx context.Context, templateID, to string, data map[string]string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send %s: no recipient", templateID)
	}
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if lastErr = d.sender.SendEmail(ctx, to, subject, body); lastErr == nil {
			d.logger.Debug().Str("template", templateID).Int("attempt", attempt).Msg("email sent")
			return nil
		}
		d.logger.Warn().Err(lastErr).Str("template", templateID).Int("attempt", attempt).Msg("email send failed")
		if attempt == d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send %s: %w", templateID, ctx.Err())
		case <-time.After(time.Duration(attempt) * d.backoff):
		}
	}
	return fmt.Errorf("send %s after %d attempts: %w", templateID, d.attempts, lastErr)
}

// LogEmailSender writes emails to the log instead of delivering them.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email (log only)")
	return nil
}

// SMTPSender delivers plain-text mail through an SMTP relay. STARTTLS is used
// when the relay offers it; credentials enable PLAIN auth.
type SMTPSender struct {
	Addr     string
	From     string
	Username string
	Password string
}

const defaultSMTPPort = 587

func (s SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	msg, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (s SMTPSender) message(to, subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.From, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

func (s SMTPSender) client() (*mail.Client, error) {
	host, port := s.Addr, defaultSMTPPort
	if h, p, err := net.SplitHostPort(s.Addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid smtp port in %q", s.Addr)
		}
		host, port = h, n
	}
	opts := []mail.Option{mail.WithPort(port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if s.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password))
	}
	c, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", s.Addr, err)
	}
	return c, nil
}
