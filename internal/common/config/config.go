// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Dispatch     DispatchConfig          `mapstructure:"dispatch"`
	Channels     ChannelsConfig          `mapstructure:"channels"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Server       ServerConfig            `mapstructure:"server"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress     string `mapstructure:"broker_address"`
	MaxJobsActive     int    `mapstructure:"max_jobs_active"`
	Timeout           int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout    int    `mapstructure:"request_timeout"` // milliseconds
	DispatchProcessID string `mapstructure:"dispatch_process_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig is optional; an empty address disables the per-notification
// dispatch lock.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DispatchConfig holds the fallback policy: the fixed channel order and the
// retry ceiling shared by every notification.
type DispatchConfig struct {
	ChannelOrder []string `mapstructure:"channel_order"`
	MaxRetries   int      `mapstructure:"max_retries"`
	LockTTL      int      `mapstructure:"lock_ttl"` // milliseconds
}

type ChannelsConfig struct {
	Email    EmailChannelConfig    `mapstructure:"email"`
	SMS      SMSChannelConfig      `mapstructure:"sms"`
	Telegram TelegramChannelConfig `mapstructure:"telegram"`
}

type EmailChannelConfig struct {
	Provider string `mapstructure:"provider"` // "smtp" or "ses"
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
	SMTP     struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		SSL      bool   `mapstructure:"ssl"`
	} `mapstructure:"smtp"`
}

type SMSChannelConfig struct {
	Provider string `mapstructure:"provider"` // "smsru" or "sns"
	Timeout  int    `mapstructure:"timeout"`  // milliseconds
	SMSRu    struct {
		APIID   string `mapstructure:"api_id"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"smsru"`
	SNS struct {
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sns"`
}

type TelegramChannelConfig struct {
	BotToken      string  `mapstructure:"bot_token"`
	DefaultChatID string  `mapstructure:"default_chat_id"`
	APIURL        string  `mapstructure:"api_url"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Timeout       int     `mapstructure:"timeout"` // milliseconds
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
