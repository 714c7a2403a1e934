package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all stockwatch configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Media    MediaConfig    `mapstructure:"media"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig defines evaluation and scheduling settings.
type MonitorConfig struct {
	CooldownHours       int    `mapstructure:"cooldown_hours"`
	TickIntervalSeconds int    `mapstructure:"tick_interval_seconds"`
	StartupDelaySeconds int    `mapstructure:"startup_delay_seconds"`
	Concurrency         int    `mapstructure:"concurrency"`
	SendTimeout         string `mapstructure:"send_timeout"`
	FallbackRecipient   string `mapstructure:"fallback_recipient"`
}

// Cooldown returns the notification cooldown as a duration.
func (m MonitorConfig) Cooldown() time.Duration {
	return time.Duration(m.CooldownHours) * time.Hour
}

// TickInterval returns the scheduler interval as a duration.
func (m MonitorConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalSeconds) * time.Second
}

// StartupDelay returns the delay before the first tick as a duration.
func (m MonitorConfig) StartupDelay() time.Duration {
	return time.Duration(m.StartupDelaySeconds) * time.Second
}

// SendTimeoutDuration parses the per-send timeout, falling back to 30s.
func (m MonitorConfig) SendTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(m.SendTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ServerConfig defines the API server settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// TelegramConfig defines the Telegram Bot API transport settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	APIURL  string `mapstructure:"api_url"`
}

// WebhookConfig defines the generic webhook transport settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// MediaConfig defines where processed attachments are stored.
type MediaConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".stockwatch"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".stockwatch", "stockwatch.db"))
	v.SetDefault("monitor.cooldown_hours", 2)
	v.SetDefault("monitor.tick_interval_seconds", 1800)
	v.SetDefault("monitor.startup_delay_seconds", 60)
	v.SetDefault("monitor.concurrency", 4)
	v.SetDefault("monitor.send_timeout", "30s")
	v.SetDefault("monitor.fallback_recipient", "")
	v.SetDefault("server.listen", ":8090")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("media.dir", filepath.Join(home, ".stockwatch", "media"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
