package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	ServerAddress  string `env:"SERVER_ADDRESS"`
	BaseURL        string `env:"BASE_URL"`
	DatabaseDSN    string `env:"DATABASE_DSN"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB"`
	AMQPURL        string `env:"AMQP_URL"`
	ClickQueue     string `env:"CLICK_QUEUE_NAME"`
	AuthSecret     string `env:"AUTH_SECRET"`
	Environment    string `env:"APP_ENV"`
}

// ParseFlags builds the configuration from flags with environment variables
// taking precedence.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.ServerAddress, "a", "localhost:8080", "Address of the server")
	flag.StringVar(&cfg.BaseURL, "b", "http://localhost:8080", "Base URL for short URLs")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "PostgreSQL DSN")
	flag.StringVar(&cfg.MigrationsPath, "m", "file://migrations", "Migrations source URL")
	flag.StringVar(&cfg.RedisAddr, "r", "localhost:6379", "Redis address")
	flag.StringVar(&cfg.AMQPURL, "q", "", "RabbitMQ URL for click analytics (optional)")
	flag.StringVar(&cfg.ClickQueue, "n", "click_events", "Click analytics queue name")
	flag.StringVar(&cfg.AuthSecret, "s", "", "Secret for signing auth tokens")
	flag.StringVar(&cfg.Environment, "e", "development", "Deployment environment")
	flag.Parse()

	if fromEnv.ServerAddress != "" {
		cfg.ServerAddress = fromEnv.ServerAddress
	}
	if fromEnv.BaseURL != "" {
		cfg.BaseURL = fromEnv.BaseURL
	}
	if fromEnv.DatabaseDSN != "" {
		cfg.DatabaseDSN = fromEnv.DatabaseDSN
	}
	if fromEnv.MigrationsPath != "" {
		cfg.MigrationsPath = fromEnv.MigrationsPath
	}
	if fromEnv.RedisAddr != "" {
		cfg.RedisAddr = fromEnv.RedisAddr
	}
	if fromEnv.AMQPURL != "" {
		cfg.AMQPURL = fromEnv.AMQPURL
	}
	if fromEnv.ClickQueue != "" {
		cfg.ClickQueue = fromEnv.ClickQueue
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.Environment != "" {
		cfg.Environment = fromEnv.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	return nil
}

// Production reports whether internal error detail should be suppressed.
func (c *Config) Production() bool {
	return c.Environment == "production"
}
