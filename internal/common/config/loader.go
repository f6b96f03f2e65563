// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Known channel identifiers accepted in dispatch.channel_order.
var knownChannels = map[string]bool{
	"email":    true,
	"sms":      true,
	"telegram": true,
}

// DispatchWorkerName is the workers key of the dispatch job worker.
const DispatchWorkerName = "dispatch-notification"

// headroom in a dispatch cycle beyond the sender timeouts, milliseconds
const dispatchCycleMargin = 5000

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills channel credentials from the deployment's
// well-known environment variables when the config file left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Channels.SMS.SMSRu.APIID, "SMS_RU_API_ID")
	setIfEmpty(&cfg.Channels.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setIfEmpty(&cfg.Channels.Telegram.DefaultChatID, "TELEGRAM_CHAT_ID")
	setIfEmpty(&cfg.Channels.Email.SMTP.Host, "EMAIL_HOST")
	setIfEmpty(&cfg.Channels.Email.SMTP.Username, "EMAIL_HOST_USER")
	setIfEmpty(&cfg.Channels.Email.SMTP.Password, "EMAIL_HOST_PASSWORD")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")

	if val := os.Getenv("EMAIL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Channels.Email.SMTP.Port = port
		}
	}
	if cfg.Channels.Email.From == "" {
		cfg.Channels.Email.From = cfg.Channels.Email.SMTP.Username
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "message-notifier"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	if cfg.Camunda.DispatchProcessID == "" {
		cfg.Camunda.DispatchProcessID = "notification-dispatch"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if len(cfg.Dispatch.ChannelOrder) == 0 {
		cfg.Dispatch.ChannelOrder = []string{"sms", "email", "telegram"}
	}
	if cfg.Dispatch.MaxRetries == 0 {
		cfg.Dispatch.MaxRetries = 3
	}
	if cfg.Dispatch.LockTTL == 0 {
		cfg.Dispatch.LockTTL = 60000
	}

	if cfg.Channels.Email.Provider == "" {
		cfg.Channels.Email.Provider = "smtp"
	}
	if cfg.Channels.Email.Subject == "" {
		cfg.Channels.Email.Subject = "Notification"
	}
	if cfg.Channels.Email.Timeout == 0 {
		cfg.Channels.Email.Timeout = 10000
	}
	if cfg.Channels.Email.SMTP.Port == 0 {
		cfg.Channels.Email.SMTP.Port = 465
	}
	if cfg.Channels.SMS.Provider == "" {
		cfg.Channels.SMS.Provider = "smsru"
	}
	if cfg.Channels.SMS.SMSRu.BaseURL == "" {
		cfg.Channels.SMS.SMSRu.BaseURL = "https://sms.ru"
	}
	if cfg.Channels.SMS.Timeout == 0 {
		cfg.Channels.SMS.Timeout = 10000
	}
	if cfg.Channels.Telegram.Timeout == 0 {
		cfg.Channels.Telegram.Timeout = 10000
	}
	if cfg.Channels.Telegram.RatePerSecond == 0 {
		cfg.Channels.Telegram.RatePerSecond = 25
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = defaultWorkerTimeout(cfg, key)
		}
		cfg.Workers[key] = w
	}
}

// DispatchCycleBudget is the longest one dispatch cycle can take, in
// milliseconds: every ordered channel timing out plus room for the record
// reads and writes and the Telegram rate limiter.
func DispatchCycleBudget(cfg *Config) int {
	budget := dispatchCycleMargin
	for _, ch := range cfg.Dispatch.ChannelOrder {
		switch ch {
		case "email":
			budget += cfg.Channels.Email.Timeout
		case "sms":
			budget += cfg.Channels.SMS.Timeout
		case "telegram":
			budget += cfg.Channels.Telegram.Timeout
		}
	}
	return budget
}

func defaultWorkerTimeout(cfg *Config, workerName string) int {
	if workerName == DispatchWorkerName {
		if budget := DispatchCycleBudget(cfg); budget > 30000 {
			return budget
		}
	}
	return 30000
}

// validateConfig only rejects settings the dispatch policy cannot run with.
// Missing channel credentials are deliberately accepted: the affected sender
// reports every attempt as failed instead.
func validateConfig(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Dispatch.ChannelOrder))
	for _, ch := range cfg.Dispatch.ChannelOrder {
		if !knownChannels[ch] {
			return fmt.Errorf("dispatch.channel_order: unknown channel %q", ch)
		}
		if seen[ch] {
			return fmt.Errorf("dispatch.channel_order: duplicate channel %q", ch)
		}
		seen[ch] = true
	}
	if cfg.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must not be negative")
	}

	switch cfg.Channels.Email.Provider {
	case "smtp", "ses":
	default:
		return fmt.Errorf("channels.email.provider: unsupported provider %q", cfg.Channels.Email.Provider)
	}
	switch cfg.Channels.SMS.Provider {
	case "smsru", "sns":
	default:
		return fmt.Errorf("channels.sms.provider: unsupported provider %q", cfg.Channels.SMS.Provider)
	}

	if w, ok := cfg.Workers[DispatchWorkerName]; ok && w.Timeout < DispatchCycleBudget(cfg) {
		return fmt.Errorf("workers.%s.timeout: %dms is shorter than a dispatch cycle (%dms)",
			DispatchWorkerName, w.Timeout, DispatchCycleBudget(cfg))
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, exists := cfg.Workers[workerName]; exists {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       defaultWorkerTimeout(cfg, workerName),
	}
}
