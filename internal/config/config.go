package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Order API modes
const (
	OrderAPIRemote = "remote"
	OrderAPILocal  = "local"
)

// Config holds all configuration for the café storefront
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	OrderAPI OrderAPIConfig `yaml:"order_api"`
	Feed     FeedConfig     `yaml:"feed"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig holds the storefront HTTP listener settings
type ServerConfig struct {
	Port               int           `yaml:"port"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	MaxSessions        int           `yaml:"max_sessions"`
}

// StorageConfig selects the durable key-value store backing carts and local orders
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// OrderAPIConfig points at the order-receiving service
type OrderAPIConfig struct {
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
}

// FeedConfig configures the staff order feed
type FeedConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// CheckoutConfig holds checkout pricing
type CheckoutConfig struct {
	DeliveryFee string `yaml:"delivery_fee"`
}

// TelegramConfig configures staff notifications; empty token disables them
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Default returns the configuration used when a value is absent from both the file and the environment
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               3000,
			ShutdownTimeout:    10 * time.Second,
			SessionIdleTimeout: 30 * time.Minute,
			MaxSessions:        10000,
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
			Path:   "teapot.db",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "teapot",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
		},
		OrderAPI: OrderAPIConfig{
			Mode:    OrderAPIRemote,
			BaseURL: "https://teapotserver.onrender.com",
		},
		Feed: FeedConfig{
			PollInterval: 3 * time.Second,
		},
		Checkout: CheckoutConfig{
			DeliveryFee: "2.99",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then applies
// environment overrides (a .env file in the working directory is honoured).
// An empty filename skips the file.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides values from the environment
func (c *Config) applyEnv() error {
	setString(&c.Storage.Driver, "TEAPOT_STORAGE_DRIVER")
	setString(&c.Storage.Path, "TEAPOT_STORAGE_PATH")
	setString(&c.OrderAPI.Mode, "TEAPOT_ORDER_API_MODE")
	setString(&c.OrderAPI.BaseURL, "TEAPOT_ORDER_API_URL")
	setString(&c.Checkout.DeliveryFee, "TEAPOT_DELIVERY_FEE")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")

	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")

	setString(&c.Telegram.Token, "TELEGRAM_TOKEN")

	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.RabbitMQ.Port, "RABBITMQ_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("RABBITMQ_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RABBITMQ_ENABLED value: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID value: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate checks enumerated and numeric settings
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageSQLite, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.Path == "" {
		return errors.New("storage.path is required for the sqlite driver")
	}

	switch c.OrderAPI.Mode {
	case OrderAPIRemote:
		if c.OrderAPI.BaseURL == "" {
			return errors.New("order_api.base_url is required in remote mode")
		}
	case OrderAPILocal:
	default:
		return fmt.Errorf("unknown order_api mode: %s", c.OrderAPI.Mode)
	}

	if c.Server.SessionIdleTimeout <= 0 {
		return errors.New("server.session_idle_timeout must be positive")
	}
	if c.Server.MaxSessions <= 0 {
		return errors.New("server.max_sessions must be positive")
	}

	if c.Feed.PollInterval <= 0 {
		return errors.New("feed.poll_interval must be positive")
	}

	if _, err := c.DeliveryFee(); err != nil {
		return err
	}
	return nil
}

// DeliveryFee returns the fixed checkout delivery fee
func (c *Config) DeliveryFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Checkout.DeliveryFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid checkout.delivery_fee %q: %w", c.Checkout.DeliveryFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("checkout.delivery_fee must not be negative")
	}
	return fee, nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}
