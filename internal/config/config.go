// Package config loads the process configuration from the environment.
//
// All components receive an explicit Config value from their
// constructors; nothing in this repository reads the environment after
// Load returns.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the fixodev process consumes.
type Config struct {
	// Port is the HTTP listen port for the webhook receiver.
	Port int `env:"FIXODEV_PORT" envDefault:"8080"`
	// WebhookPath is the route the receiver accepts deliveries on.
	WebhookPath string `env:"FIXODEV_WEBHOOK_PATH" envDefault:"/api/webhooks/github"`
	// WebhookSecret is the shared secret GitHub signs deliveries with.
	// When empty, signature verification is disabled (with a warning).
	WebhookSecret string `env:"FIXODEV_WEBHOOK_SECRET"`
	// BotName is the GitHub handle the bot answers to, without the "@".
	BotName string `env:"FIXODEV_BOT_NAME" envDefault:"fixodev"`
	// Events is the set of webhook event types the classifier accepts.
	Events []string `env:"FIXODEV_EVENTS" envDefault:"issue_comment,issues,pull_request"`
	// TemplateCatalog optionally points at a YAML file overriding the
	// built-in prompt templates.
	TemplateCatalog string `env:"FIXODEV_TEMPLATE_CATALOG"`
	// QueueSize bounds the dispatch queue.
	QueueSize int `env:"FIXODEV_QUEUE_SIZE" envDefault:"64"`
	// Workers is the number of concurrent job processors.
	Workers int `env:"FIXODEV_WORKERS" envDefault:"2"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `env:"FIXODEV_LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BotName == "" {
		return fmt.Errorf("bot name must not be empty")
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("recognized event set must not be empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	return nil
}
