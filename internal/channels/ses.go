package channels

import (
	"context"

	"message-notifier/internal/common/aws"
	"message-notifier/internal/common/config"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
)

type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailSender delivers mail through Amazon SES.
type SESEmailSender struct {
	api     SESAPI
	from    string
	subject string
	logger  logger.Logger
}

func NewSESEmailSender(api SESAPI, cfg config.EmailChannelConfig, log logger.Logger) *SESEmailSender {
	return &SESEmailSender{
		api:     api,
		from:    cfg.From,
		subject: cfg.Subject,
		logger:  log.WithFields(map[string]interface{}{"channel": string(models.ChannelEmail), "provider": "ses"}),
	}
}

func (s *SESEmailSender) Send(ctx context.Context, recipient models.Recipient, message string) bool {
	if s.from == "" || recipient.Email == "" {
		s.logger.Warn("email sender missing sender or recipient address", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	out, err := s.api.SendEmail(ctx, aws.PlainTextEmail(s.from, recipient.Email, s.subject, message))
	if err != nil {
		s.logger.Error("email send failed", map[string]interface{}{
			"recipientId": recipient.ID,
			"error":       err,
		})
		return false
	}

	if out != nil && out.MessageId != nil {
		s.logger.Debug("email accepted", map[string]interface{}{
			"recipientId": recipient.ID,
			"messageId":   *out.MessageId,
		})
	}
	return true
}
