package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment (and .env if present).
type Config struct {
	HTTPAddr         string        `env:"HTTP_ADDR,default=:8080"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
	JWTSecret        string        `env:"JWT_SECRET,default=dev-only-secret"`
	DatabaseDSN      string        `env:"DATABASE_DSN"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	ProfileRetention time.Duration `env:"PROFILE_RETENTION,default=24h"`
	MaxProfiles      int           `env:"MAX_PROFILES,default=100000"`
	MaxQueueWait     time.Duration `env:"MAX_QUEUE_WAIT,default=0s"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	PasswordMode     string        `env:"PASSWORD_MODE,default=plain"`
	PasswordWorkers  int           `env:"PASSWORD_WORKERS,default=2"`
	OutboxSize       int           `env:"OUTBOX_SIZE,default=256"`
	EventBufferSize  int           `env:"EVENT_BUFFER_SIZE,default=1024"`
	LocalizationDir  string        `env:"LOCALIZATION_DIR"`
}

// Load reads .env (missing file is not an error) and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file loaded, using process environment")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that the env decoder cannot.
func (c *Config) Validate() error {
	switch c.PasswordMode {
	case "plain", "argon2":
	default:
		return fmt.Errorf("config: PASSWORD_MODE must be plain or argon2, got %q", c.PasswordMode)
	}
	if c.PasswordMode == "argon2" && c.PasswordWorkers <= 0 {
		return fmt.Errorf("config: PASSWORD_WORKERS must be positive with argon2 passwords")
	}
	if c.MaxProfiles <= 0 {
		return fmt.Errorf("config: MAX_PROFILES must be positive")
	}
	if c.OutboxSize <= 0 || c.EventBufferSize <= 0 {
		return fmt.Errorf("config: OUTBOX_SIZE and EVENT_BUFFER_SIZE must be positive")
	}
	if c.MaxQueueWait < 0 || c.ProfileRetention < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}

// LogrusLevel parses LogLevel, defaulting to info.
func (c *Config) LogrusLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
