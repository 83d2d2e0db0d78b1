// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// Email is one outgoing message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email.
type Sender interface {
	Send(e Email) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	Timeout  time.Duration
}

// smtpSender is the part of email.Sender the Mailer uses.
type smtpSender interface {
	SendHTML(ctx context.Context, to, subject, textBody, htmlBody string) error
	Send(ctx context.Context, msg email.Message) error
}

// Mailer sends mail through waffle's SMTP sender. STARTTLS is required
// unless the port is 465, which uses implicit TLS.
type Mailer struct {
	smtp    smtpSender
	timeout time.Duration
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := email.NewSender(email.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.User,
		Password:    cfg.Pass,
		FromAddress: cfg.From,
		FromName:    cfg.FromName,
		UseSSL:      cfg.Port == 465,
		Timeout:     cfg.Timeout,
	})
	return &Mailer{smtp: s, timeout: cfg.Timeout, log: log}
}

func (m *Mailer) Send(e Email) error {
	if e.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var err error
	if e.HTMLBody != "" {
		err = m.smtp.SendHTML(ctx, e.To, e.Subject, e.TextBody, e.HTMLBody)
	} else {
		err = m.smtp.Send(ctx, email.Message{To: []string{e.To}, Subject: e.Subject, TextBody: e.TextBody})
	}
	if err != nil {
		return fmt.Errorf("mailer: send to %s: %w", e.To, err)
	}
	m.log.Info("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// LogSender writes emails to the log instead of sending them. Used in dev
// when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

func (l LogSender) Send(e Email) error {
	l.Log.Info("email (not sent)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("body", e.TextBody))
	return nil
}
