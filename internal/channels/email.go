package channels

import (
	"context"
	"time"

	"message-notifier/internal/common/config"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"gopkg.in/mail.v2"
)

// mailDialer is the part of *mail.Dialer the SMTP sender uses.
type mailDialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPEmailSender delivers plain-text mail through an authenticated SMTP relay.
type SMTPEmailSender struct {
	dialer     mailDialer
	from       string
	subject    string
	configured bool
	logger     logger.Logger
}

func NewSMTPEmailSender(cfg config.EmailChannelConfig, log logger.Logger) *SMTPEmailSender {
	d := mail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	d.SSL = cfg.SMTP.SSL || cfg.SMTP.Port == 465
	d.Timeout = timeoutOr(cfg.Timeout, 10*time.Second)

	return &SMTPEmailSender{
		dialer:     d,
		from:       cfg.From,
		subject:    cfg.Subject,
		configured: cfg.SMTP.Host != "" && cfg.SMTP.Username != "" && cfg.From != "",
		logger:     log.WithFields(map[string]interface{}{"channel": string(models.ChannelEmail), "provider": "smtp"}),
	}
}

func (s *SMTPEmailSender) Send(_ context.Context, recipient models.Recipient, message string) bool {
	if !s.configured {
		s.logger.Warn("email sender not configured", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}
	if recipient.Email == "" {
		s.logger.Warn("recipient has no email address", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient.Email)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", message)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("email send failed", map[string]interface{}{
			"recipientId": recipient.ID,
			"error":       err,
		})
		return false
	}
	return true
}
