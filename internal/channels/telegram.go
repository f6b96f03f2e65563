package channels

import (
	"context"
	"strconv"
	"strings"
	"time"

	"message-notifier/internal/common/config"
	commonhttp "message-notifier/internal/common/http"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// chatUsername addresses a public channel or group by its @username.
type chatUsername string

func (c chatUsername) Recipient() string { return string(c) }

// TelegramSender posts the message to a chat through the Bot API. The chat
// is the recipient's telegram id, or the configured default chat when the
// recipient has none.
type TelegramSender struct {
	bot         *tele.Bot
	limiter     *rate.Limiter
	defaultChat string
	logger      logger.Logger
}

func NewTelegramSender(cfg config.TelegramChannelConfig, log logger.Logger) *TelegramSender {
	s := &TelegramSender{
		defaultChat: strings.TrimSpace(cfg.DefaultChatID),
		logger:      log.WithFields(map[string]interface{}{"channel": string(models.ChannelTelegram)}),
	}

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 25
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)

	if strings.TrimSpace(cfg.BotToken) == "" {
		return s
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.BotToken,
		URL:     cfg.APIURL,
		Client:  commonhttp.NewClient(timeoutOr(cfg.Timeout, 10*time.Second)).HTTPClient(),
		Offline: true,
	})
	if err != nil {
		s.logger.Warn("telegram bot init failed", map[string]interface{}{"error": err})
		return s
	}
	s.bot = bot
	return s
}

func (s *TelegramSender) Send(ctx context.Context, recipient models.Recipient, message string) bool {
	if s.bot == nil {
		s.logger.Warn("telegram sender not configured", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	chat := strings.TrimSpace(recipient.TelegramID)
	if chat == "" {
		chat = s.defaultChat
	}
	if chat == "" {
		s.logger.Warn("no telegram chat for recipient", map[string]interface{}{"recipientId": recipient.ID})
		return false
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("telegram rate limiter aborted", map[string]interface{}{"recipientId": recipient.ID, "error": err})
		return false
	}

	if _, err := s.bot.Send(chatRecipient(chat), message); err != nil {
		s.logger.Error("telegram send failed", map[string]interface{}{
			"recipientId": recipient.ID,
			"chat":        chat,
			"error":       err,
		})
		return false
	}
	return true
}

func chatRecipient(chat string) tele.Recipient {
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		return tele.ChatID(id)
	}
	if !strings.HasPrefix(chat, "@") {
		chat = "@" + chat
	}
	return chatUsername(chat)
}
