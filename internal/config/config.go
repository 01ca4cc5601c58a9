package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot            BotConfig            `mapstructure:"bot"`
	Logger         LoggerConfig         `mapstructure:"logger"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Relay          RelayConfig          `mapstructure:"relay"`
	Events         EventsConfig         `mapstructure:"events"`
	Customizations CustomizationsConfig `mapstructure:"customizations"`
}

// Telegram bot configuration
type BotConfig struct {
	// Token is used to bootstrap a single tenant when the settings table is
	// empty; multi-tenant deployments keep tokens in the database.
	Token      string        `mapstructure:"token"`
	AdminID    int64         `mapstructure:"admin_id"`
	MasterChat int64         `mapstructure:"master_chat"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	// Endpoint is the externally visible base URL. Empty endpoint switches
	// every tenant to long polling.
	Endpoint   string `mapstructure:"endpoint"`
	ListenPort string `mapstructure:"listen_port"`
	SecretPath string `mapstructure:"secret_path"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	// File is the database path for the sqlite driver.
	File string `mapstructure:"file"`
}

// relay behavior settings
type RelayConfig struct {
	AlbumFlushDelay time.Duration `mapstructure:"album_flush_delay"`
	AckTimeout      time.Duration `mapstructure:"ack_timeout"`
}

// external event bus settings
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	AckQueue string `mapstructure:"ack_queue"`
}

// per-bot customization bindings
type CustomizationsConfig struct {
	// HelperBots lists bot ids that get the task-assignment keyboard.
	HelperBots []int64 `mapstructure:"helper_bots"`
	// InfoBot is the username (without @) the /get_info command line on
	// relayed tickets is addressed to.
	InfoBot string `mapstructure:"info_bot"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.secret_path", "relay")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file", "data/support.db")
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("relay.album_flush_delay", 7*time.Second)
	v.SetDefault("relay.ack_timeout", 10*time.Minute)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.exchange", "support.events")
	v.SetDefault("events.ack_queue", "support.acks")
}
