package channels

import (
	"context"

	"message-notifier/internal/common/aws"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes one direct SMS per phone number of the recipient.
// Every leg is attempted; legs that went out are not recalled when another fails.
type SNSSender struct {
	api      SNSAPI
	senderID string
	logger   logger.Logger
}

func NewSNSSender(api SNSAPI, senderID string, log logger.Logger) *SNSSender {
	return &SNSSender{
		api:      api,
		senderID: senderID,
		logger:   log.WithFields(map[string]interface{}{"channel": string(models.ChannelSMS), "provider": "sns"}),
	}
}

func (s *SNSSender) Send(ctx context.Context, recipient models.Recipient, message string) bool {
	legs := recipient.PhoneLegs()
	if len(legs) == 0 {
		s.logger.Warn("recipient has no phone number", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	ok := true
	for _, phone := range legs {
		if _, err := s.api.Publish(ctx, aws.DirectSMS(phone, message, s.senderID)); err != nil {
			ok = false
			s.logger.Warn("sms leg rejected", map[string]interface{}{
				"recipientId": recipient.ID,
				"phone":       phone,
				"error":       err,
			})
		}
	}
	return ok
}
