package channels

import (
	"context"
	"net/url"
	"strings"
	"time"

	"message-notifier/internal/common/config"
	commonhttp "message-notifier/internal/common/http"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"
)

// smsRuAccepted is the per-number status code SMS.ru uses for an accepted message.
const smsRuAccepted = 100

type smsRuResponse struct {
	Status     string                `json:"status"`
	StatusCode int                   `json:"status_code"`
	SMS        map[string]smsRuEntry `json:"sms"`
}

type smsRuEntry struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	SMSID      string `json:"sms_id"`
	StatusText string `json:"status_text"`
}

// SMSRuSender sends SMS through the SMS.ru HTTP API. A recipient phone
// attribute may list several numbers; the attempt succeeds only if every
// number is accepted.
type SMSRuSender struct {
	client  *commonhttp.Client
	baseURL string
	apiID   string
	logger  logger.Logger
}

func NewSMSRuSender(cfg config.SMSChannelConfig, log logger.Logger) *SMSRuSender {
	return &SMSRuSender{
		client:  commonhttp.NewClient(timeoutOr(cfg.Timeout, 10*time.Second)),
		baseURL: strings.TrimRight(cfg.SMSRu.BaseURL, "/"),
		apiID:   cfg.SMSRu.APIID,
		logger:  log.WithFields(map[string]interface{}{"channel": string(models.ChannelSMS), "provider": "smsru"}),
	}
}

func (s *SMSRuSender) Send(ctx context.Context, recipient models.Recipient, message string) bool {
	legs := recipient.PhoneLegs()
	if s.apiID == "" || len(legs) == 0 {
		s.logger.Warn("sms sender missing api id or phone number", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	q := url.Values{}
	q.Set("api_id", s.apiID)
	q.Set("to", strings.Join(legs, ","))
	q.Set("msg", message)
	q.Set("json", "1")

	var resp smsRuResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/sms/send?"+q.Encode(), &resp); err != nil {
		s.logger.Error("sms request failed", map[string]interface{}{
			"recipientId": recipient.ID,
			"error":       err,
		})
		return false
	}

	if len(resp.SMS) == 0 {
		s.logger.Warn("sms response carried no per-number status", map[string]interface{}{
			"recipientId": recipient.ID,
			"status":      resp.Status,
			"statusCode":  resp.StatusCode,
		})
		return false
	}

	ok := true
	for phone, entry := range resp.SMS {
		if entry.StatusCode != smsRuAccepted {
			ok = false
			s.logger.Warn("sms leg rejected", map[string]interface{}{
				"recipientId": recipient.ID,
				"phone":       phone,
				"statusCode":  entry.StatusCode,
				"statusText":  entry.StatusText,
			})
		}
	}
	return ok
}
