package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cryptocard-ledger/pkg/db" // Import db package for its Config struct
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string    `yaml:"server_port"`
	Log        LogConfig `yaml:"log"`

	StoreBackend  string    `yaml:"store_backend"`  // file|postgres|memory
	StoreFile     string    `yaml:"store_file"`     // Snapshot path for the file backend
	WatchlistFile string    `yaml:"watchlist_file"` // Watchlist snapshot path for the file backend
	DB            db.Config `yaml:"database"`

	CommissionRate decimal.Decimal `yaml:"commission_rate"`
	AlertSchedule  string          `yaml:"alert_schedule"` // cron schedule for the pending watcher
	AlertOrigins   []string        `yaml:"alert_origins"`  // Browser origins allowed on the alert stream besides the server's own

	JWTSecret string `yaml:"jwt_secret"`

	RedisAddr      string        `yaml:"redis_addr"` // Empty disables idempotency keys
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	Payment PaymentConfig `yaml:"payment"`
}

// LogConfig controls structured logging settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json|text
	AddSource bool   `yaml:"add_source"`
}

// PaymentConfig points at the card authorization provider.
// An empty BaseURL selects the always-approve development authorizer.
type PaymentConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Default returns the configuration used for local development.
func Default() *AppConfig {
	return &AppConfig{
		ServerPort:    "8080",
		Log:           LogConfig{Level: "info", Format: "json", AddSource: true},
		StoreBackend:  StoreFile,
		StoreFile:     "data/transactions.json",
		WatchlistFile: "data/watchlist.json",
		DB: db.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "password",
			DBName:   "ledgerdb",
			SSLMode:  "disable",
		},
		CommissionRate: decimal.RequireFromString("0.14"),
		AlertSchedule:  "@every 5s",
		JWTSecret:      "dev-secret",
		IdempotencyTTL: 24 * time.Hour,
		Payment: PaymentConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
		},
	}
}

// LoadConfig loads configuration from an optional .env file, an optional YAML
// file named by CONFIG_FILE, and environment variables, in increasing order of
// precedence.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.ServerPort, "SERVER_PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.StoreFile, "STORE_FILE")
	setString(&cfg.WatchlistFile, "WATCHLIST_FILE")
	setString(&cfg.DB.Host, "DB_HOST")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.DBName, "DB_NAME")
	setString(&cfg.DB.SSLMode, "DB_SSLMODE")
	setString(&cfg.AlertSchedule, "ALERT_SCHEDULE")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Payment.BaseURL, "PAYMENT_BASE_URL")
	setString(&cfg.Payment.APIKey, "PAYMENT_API_KEY")

	if v := os.Getenv("ALERT_ORIGINS"); v != "" {
		cfg.AlertOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AlertOrigins = append(cfg.AlertOrigins, origin)
			}
		}
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DB.Port = port
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("COMMISSION_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid COMMISSION_RATE: %w", err)
		}
		cfg.CommissionRate = rate
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}
	if v := os.Getenv("PAYMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PAYMENT_TIMEOUT: %w", err)
		}
		cfg.Payment.Timeout = d
	}
	if v := os.Getenv("LOG_ADD_SOURCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_ADD_SOURCE: %w", err)
		}
		cfg.Log.AddSource = b
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *AppConfig) Validate() error {
	switch c.StoreBackend {
	case StoreFile, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend == StoreFile && c.StoreFile == "" {
		return fmt.Errorf("STORE_FILE is required for the file store backend")
	}
	if c.StoreBackend == StoreFile && c.WatchlistFile == "" {
		return fmt.Errorf("WATCHLIST_FILE is required for the file store backend")
	}
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid COMMISSION_RATE %s: must be in [0, 1)", c.CommissionRate)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
