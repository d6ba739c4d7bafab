package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. GAVEL_HTTP_ADDR
const EnvPrefix = "GAVEL"

// Config is the auction server configuration
type Config struct {
	HTTPAddr        string
	LogLevel        slog.Level
	ResetWindow     time.Duration
	ShutdownTimeout time.Duration

	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Auth     AuthConfig
}

// RabbitMQConfig configures event export and the admin command queue. Empty URL disables both.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	AdminQueue string
}

// RedisConfig configures the Pub/Sub export of accepted bids. Empty URL disables it.
type RedisConfig struct {
	URL     string
	Channel string
}

// NATSConfig configures the NATS export of accepted bids. Empty URL disables it.
type NATSConfig struct {
	URL     string
	Subject string
}

// AuthConfig configures admin tokens. Without a public key the admin API is not mounted.
type AuthConfig struct {
	PrivateKeyPath    string
	PublicKeyPath     string
	Issuer            string
	AdminPasswordHash string
}

// AdminEnabled reports whether admin endpoints can be served
func (a AuthConfig) AdminEnabled() bool {
	return a.PublicKeyPath != ""
}

// Load reads .env.local and .env, then flags and GAVEL_* environment variables
func Load(args []string) (*Config, error) {
	// Load .env.local first (for local overrides), then .env
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	return Parse(args)
}

// Parse builds a Config from command-line args and the process environment
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("auction-server", pflag.ContinueOnError)

	// server
	fs.String("http-addr", ":8080", "HTTP listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Duration("reset-window", 5*time.Minute, "auction duration after a reset")
	fs.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	// rabbitmq
	fs.String("rabbitmq-url", "", "RabbitMQ URL, empty disables event export")
	fs.String("rabbitmq-exchange", "auction.events", "topic exchange for auction events")
	fs.String("rabbitmq-admin-queue", "auction.admin", "queue consumed for admin commands")

	// redis
	fs.String("redis-url", "", "Redis URL, empty disables Pub/Sub export")
	fs.String("redis-channel", "auction:bids", "Pub/Sub channel for accepted bids")

	// nats
	fs.String("nats-url", "", "NATS URL, empty disables NATS export")
	fs.String("nats-subject", "auction.bids", "subject for accepted bids")

	// admin auth
	fs.String("jwt-private-key-path", "", "PEM private key used to issue admin tokens")
	fs.String("jwt-public-key-path", "", "PEM public key used to verify admin tokens")
	fs.String("jwt-issuer", "gavel-live", "token issuer")
	fs.String("admin-password-hash", "", "argon2id hash of the admin password")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log-level %q: %w", v.GetString("log-level"), err)
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("http-addr"),
		LogLevel:        level,
		ResetWindow:     v.GetDuration("reset-window"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		RabbitMQ: RabbitMQConfig{
			URL:        v.GetString("rabbitmq-url"),
			Exchange:   v.GetString("rabbitmq-exchange"),
			AdminQueue: v.GetString("rabbitmq-admin-queue"),
		},
		Redis: RedisConfig{
			URL:     v.GetString("redis-url"),
			Channel: v.GetString("redis-channel"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("nats-url"),
			Subject: v.GetString("nats-subject"),
		},
		Auth: AuthConfig{
			PrivateKeyPath:    v.GetString("jwt-private-key-path"),
			PublicKeyPath:     v.GetString("jwt-public-key-path"),
			Issuer:            v.GetString("jwt-issuer"),
			AdminPasswordHash: v.GetString("admin-password-hash"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http-addr is required"))
	}
	if c.ResetWindow <= 0 {
		errs = append(errs, errors.New("reset-window must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown-timeout must be positive"))
	}
	if c.RabbitMQ.URL != "" && (c.RabbitMQ.Exchange == "" || c.RabbitMQ.AdminQueue == "") {
		errs = append(errs, errors.New("rabbitmq-exchange and rabbitmq-admin-queue are required with rabbitmq-url"))
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		errs = append(errs, errors.New("redis-channel is required with redis-url"))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats-subject is required with nats-url"))
	}
	if c.Auth.PrivateKeyPath != "" && c.Auth.PublicKeyPath == "" {
		errs = append(errs, errors.New("jwt-public-key-path is required with jwt-private-key-path"))
	}
	if c.Auth.AdminPasswordHash != "" && c.Auth.PrivateKeyPath == "" {
		errs = append(errs, errors.New("jwt-private-key-path is required to issue tokens for admin-password-hash"))
	}
	if c.Auth.AdminEnabled() && c.Auth.Issuer == "" {
		errs = append(errs, errors.New("jwt-issuer is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
