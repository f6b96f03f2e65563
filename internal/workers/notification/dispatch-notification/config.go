// internal/workers/notification/dispatch-notification/config.go
package dispatchnotification

import "time"

type Config struct {
	Timeout time.Duration
	LockTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		LockTTL: 60 * time.Second,
	}
}
