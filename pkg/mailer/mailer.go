// Package mailer delivers verification codes by email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const verificationSubject = "Verification code"

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; background: #f6f6f6; padding: 24px;">
    <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
      <h2 style="margin-top: 0;">Your verification code</h2>
      <p>Use the code below to finish signing in. It expires in {{.ValidMinutes}} minutes.</p>
      <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center;">{{.Code}}</p>
      <p style="color: #888888; font-size: 12px;">If you did not request this code, you can ignore this email.</p>
    </div>
  </body>
</html>
`))

// Sender delivers a verification code to an address
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// Config holds SMTP delivery settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SSL selects implicit TLS; otherwise STARTTLS is used when offered
	SSL     bool
	Timeout time.Duration
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	cfg          Config
	validMinutes int
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg Config, codeTTL time.Duration) *SMTPSender {
	return &SMTPSender{cfg: cfg, validMinutes: int(codeTTL.Minutes())}
}

// SendVerificationCode renders the code email and delivers it
func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, code string) error {
	body, err := RenderVerificationEmail(code, s.validMinutes)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("failed to set recipient address: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	msg.AddAlternativeString(mail.TypeTextPlain, fmt.Sprintf("Your verification code is %s", code))

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}

	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}

	if s.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogSender stands in for SMTP when no relay is configured; it never logs the code
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs deliveries
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(_ context.Context, to, _ string) error {
	s.logger.Info("SMTP not configured, verification email not sent", zap.String("email", to))
	return nil
}

// RenderVerificationEmail produces the HTML body for a verification code
func RenderVerificationEmail(code string, validMinutes int) (string, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct {
		Code         string
		ValidMinutes int
	}{Code: code, ValidMinutes: validMinutes})
	if err != nil {
		return "", fmt.Errorf("failed to render verification email: %w", err)
	}
	return buf.String(), nil
}
