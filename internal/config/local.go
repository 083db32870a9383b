package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// LocalConfig holds configuration for the storefront daemon and CLI
type LocalConfig struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Payment PaymentConfig `yaml:"payment"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	Bind     string `yaml:"bind" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	// LoginRate is the number of login attempts allowed per minute
	LoginRate int `yaml:"login_rate" validate:"min=1"`
}

// APIConfig holds remote storefront API settings
type APIConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
	Retries        int    `yaml:"retries" validate:"min=1,max=10"`
	// Workers bounds concurrent product lookups for order history
	Workers int `yaml:"workers" validate:"min=1,max=32"`
}

// StorageConfig selects where session and cart state live
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite redis postgres"`
	// Path is the data directory (file) or database file (sqlite); empty
	// means inside the storefront directory
	Path        string `yaml:"path,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	RedisURL    string `yaml:"-" validate:"required_if=Backend redis"`
	DatabaseURL string `yaml:"-" validate:"required_if=Backend postgres"`
}

// EventsConfig holds event publishing settings
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Buffer      int    `yaml:"buffer" validate:"min=1"`
	RabbitMQURL string `yaml:"-" validate:"required_if=Enabled true"`
}

// PaymentConfig holds payment widget settings
type PaymentConfig struct {
	CheckoutURL string `yaml:"checkout_url" validate:"required,url"`
	PublicKey   string `yaml:"-"` // Loaded from secrets.yaml
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	PaymentPublicKey string `yaml:"payment_public_key,omitempty"`
	RedisURL         string `yaml:"redis_url,omitempty"`
	DatabaseURL      string `yaml:"database_url,omitempty"`
	RabbitMQURL      string `yaml:"rabbitmq_url,omitempty"`
}

// StorefrontDir returns the path to ~/.storefront, or $STOREFRONT_HOME
func StorefrontDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".storefront"), nil
}

// EnsureStorefrontDir creates the storefront directory and subdirectories
func EnsureStorefrontDir() (string, error) {
	dir, err := StorefrontDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:      7433,
			Bind:      "127.0.0.1",
			LogLevel:  "info",
			LoginRate: 10,
		},
		API: APIConfig{
			BaseURL:        "http://localhost:4000/api",
			TimeoutSeconds: 15,
			Retries:        3,
			Workers:        4,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
		},
		Events: EventsConfig{
			Enabled: false,
			Buffer:  256,
		},
		Payment: PaymentConfig{
			CheckoutURL: "https://www.mercadopago.com.ar/checkout/v1/redirect",
		},
	}
}

// Validate checks the configuration
func (c *LocalConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.storefront/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := StorefrontDir()
	if err != nil {
		return nil, err
	}

	cfg := DefaultLocalConfig()
	configPath := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads credentials from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := os.ReadFile(secretsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.PaymentPublicKey != "" {
		cfg.Payment.PublicKey = secrets.PaymentPublicKey
	}
	if secrets.RedisURL != "" {
		cfg.Storage.RedisURL = secrets.RedisURL
	}
	if secrets.DatabaseURL != "" {
		cfg.Storage.DatabaseURL = secrets.DatabaseURL
	}
	if secrets.RabbitMQURL != "" {
		cfg.Events.RabbitMQURL = secrets.RabbitMQURL
	}

	return nil
}

// SaveLocalConfig saves configuration to ~/.storefront/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureStorefrontDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves credentials to ~/.storefront/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureStorefrontDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}

// SecretsFrom extracts the credentials held by cfg.
func SecretsFrom(cfg *LocalConfig) SecretsConfig {
	return SecretsConfig{
		PaymentPublicKey: cfg.Payment.PublicKey,
		RedisURL:         cfg.Storage.RedisURL,
		DatabaseURL:      cfg.Storage.DatabaseURL,
		RabbitMQURL:      cfg.Events.RabbitMQURL,
	}
}

// DataPath resolves the storage path for the configured backend.
func (c *LocalConfig) DataPath(dir string) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == StorageSQLite {
		return filepath.Join(dir, "storefront.db")
	}
	return filepath.Join(dir, "data")
}
