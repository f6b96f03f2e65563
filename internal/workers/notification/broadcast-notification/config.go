// internal/workers/notification/broadcast-notification/config.go
package broadcastnotification

import (
	"time"

	"message-notifier/internal/models"
)

type Config struct {
	Timeout time.Duration
	// DefaultChannels is used when the job does not name any channels.
	DefaultChannels []models.Channel
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DefaultChannels: []models.Channel{models.ChannelSMS, models.ChannelEmail, models.ChannelTelegram},
	}
}
