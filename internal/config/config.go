package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Bot       BotConfig
	DB        DBConfig
	Reddit    RedditConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
}

// BotConfig holds Telegram bot configuration
type BotConfig struct {
	Token string `envconfig:"BOT_TOKEN" required:"true"`
	// AuthorChatID is the chat that receives /feedback relays.
	AuthorChatID string `envconfig:"BOT_AUTHOR_CHAT_ID" required:"true"`
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_NAME" default:"reddit_digest_bot"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// RedditConfig holds Reddit API client configuration
type RedditConfig struct {
	BaseURL    string        `envconfig:"REDDIT_BASE_URL" default:"https://www.reddit.com"`
	RateLimit  float64       `envconfig:"REDDIT_RATE_LIMIT" default:"1"`
	Timeout    time.Duration `envconfig:"REDDIT_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"REDDIT_MAX_RETRIES" default:"3"`
	TopLimit   int           `envconfig:"REDDIT_TOP_LIMIT" default:"10"`
	UserAgent  string        `envconfig:"REDDIT_USER_AGENT" default:"reddit-digest-bot/1.0"`
}

// SchedulerConfig holds delivery scheduler configuration
type SchedulerConfig struct {
	Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"10s"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Bot); err != nil {
		return nil, fmt.Errorf("failed to load bot config: %w", err)
	}

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Reddit); err != nil {
		return nil, fmt.Errorf("failed to load reddit config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Scheduler); err != nil {
		return nil, fmt.Errorf("failed to load scheduler config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Bot.AuthorChatID == "" {
		return fmt.Errorf("BOT_AUTHOR_CHAT_ID is required")
	}
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Reddit.RateLimit <= 0 {
		return fmt.Errorf("REDDIT_RATE_LIMIT must be positive")
	}
	if c.Reddit.TopLimit <= 0 {
		return fmt.Errorf("REDDIT_TOP_LIMIT must be positive")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	return nil
}
