package channels

import (
	"context"
	"time"

	"message-notifier/internal/common/aws"
	"message-notifier/internal/common/config"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"
)

// Registry maps channel identifiers to senders. It is built once at start-up
// and handed to the dispatch service and the broadcast worker.
type Registry struct {
	senders map[models.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]Sender)}
}

func (r *Registry) Register(ch models.Channel, s Sender) *Registry {
	r.senders[ch] = s
	return r
}

func (r *Registry) Get(ch models.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

// Targets returns the senders for order, in order. Channels without a
// registered sender are kept with a nil Sender so callers still report them.
func (r *Registry) Targets(order []models.Channel) []Target {
	out := make([]Target, 0, len(order))
	for _, ch := range order {
		out = append(out, Target{Name: string(ch), Sender: r.senders[ch]})
	}
	return out
}

// NewRegistryFromConfig wires the configured provider for every channel.
// Missing credentials never fail here; the affected sender reports false.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) *Registry {
	reg := NewRegistry()

	switch cfg.Channels.Email.Provider {
	case "ses":
		awsCfg, err := aws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			log.Warn("email channel disabled", map[string]interface{}{"error": err})
			reg.Register(models.ChannelEmail, disabled(models.ChannelEmail, log))
			break
		}
		reg.Register(models.ChannelEmail, NewSESEmailSender(aws.NewSESClient(awsCfg), cfg.Channels.Email, log))
	default:
		reg.Register(models.ChannelEmail, NewSMTPEmailSender(cfg.Channels.Email, log))
	}

	switch cfg.Channels.SMS.Provider {
	case "sns":
		awsCfg, err := aws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			log.Warn("sms channel disabled", map[string]interface{}{"error": err})
			reg.Register(models.ChannelSMS, disabled(models.ChannelSMS, log))
			break
		}
		reg.Register(models.ChannelSMS, NewSNSSender(aws.NewSNSClient(awsCfg), cfg.Channels.SMS.SNS.SenderID, log))
	default:
		reg.Register(models.ChannelSMS, NewSMSRuSender(cfg.Channels.SMS, log))
	}

	reg.Register(models.ChannelTelegram, NewTelegramSender(cfg.Channels.Telegram, log))
	return reg
}

func disabled(ch models.Channel, log logger.Logger) Sender {
	return SenderFunc(func(_ context.Context, r models.Recipient, _ string) bool {
		log.Warn("channel not configured", map[string]interface{}{
			"channel":     string(ch),
			"recipientId": r.ID,
		})
		return false
	})
}

func timeoutOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return config.GetDuration(ms)
}
