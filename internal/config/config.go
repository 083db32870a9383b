package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables that override the local configuration.
const (
	EnvHome             = "STOREFRONT_HOME"
	EnvAPIURL           = "STOREFRONT_API_URL"
	EnvCheckoutURL      = "STOREFRONT_CHECKOUT_URL"
	EnvPaymentPublicKey = "STOREFRONT_PAYMENT_PUBLIC_KEY"
	EnvStorage          = "STOREFRONT_STORAGE"
	EnvStoragePath      = "STOREFRONT_STORAGE_PATH"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvDatabaseURL      = "STOREFRONT_DATABASE_URL"
	EnvRabbitMQURL      = "STOREFRONT_RABBITMQ_URL"
	EnvPort             = "STOREFRONT_PORT"
	EnvDebug            = "STOREFRONT_DEBUG"
)

// Load reads ~/.storefront/config.yaml and secrets.yaml, applies environment
// overrides and validates the result.
func Load() (*LocalConfig, error) {
	cfg, err := LoadLocalConfig()
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any STOREFRONT_* variables that are set.
func ApplyEnv(cfg *LocalConfig) {
	cfg.API.BaseURL = getEnv(EnvAPIURL, cfg.API.BaseURL)
	cfg.Payment.CheckoutURL = getEnv(EnvCheckoutURL, cfg.Payment.CheckoutURL)
	cfg.Payment.PublicKey = getEnv(EnvPaymentPublicKey, cfg.Payment.PublicKey)

	cfg.Storage.Backend = strings.ToLower(getEnv(EnvStorage, cfg.Storage.Backend))
	cfg.Storage.Path = getEnv(EnvStoragePath, cfg.Storage.Path)
	cfg.Storage.RedisURL = getEnv(EnvRedisURL, cfg.Storage.RedisURL)
	cfg.Storage.DatabaseURL = getEnv(EnvDatabaseURL, cfg.Storage.DatabaseURL)

	if url := getEnv(EnvRabbitMQURL, ""); url != "" {
		cfg.Events.RabbitMQURL = url
		cfg.Events.Enabled = true
	}

	cfg.Daemon.Port = getEnvInt(EnvPort, cfg.Daemon.Port)
	if getEnvBool(EnvDebug, false) {
		cfg.Daemon.LogLevel = "debug"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// Addr returns the daemon listen address.
func (c *LocalConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Bind, c.Daemon.Port)
}

// BaseURL returns the daemon's own base URL.
func (c *LocalConfig) BaseURL() string {
	return "http://" + c.Addr()
}
