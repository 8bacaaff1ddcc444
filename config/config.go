package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"fundsledger/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseName     string `env:"DATABASE_NAME"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"0"`
	Store            string `env:"LEDGER_STORE" envDefault:"postgres"`

	// HTTP API
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// NATS configuration
	NATSEnabled bool   `env:"NATS_ENABLED" envDefault:"false"`
	NATSServers string `env:"NATS_SERVERS" envDefault:"nats://nats:4222"`

	// Balance cache, disabled when REDIS_ADDR is empty
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	BalanceCacheTTL time.Duration `env:"BALANCE_CACHE_TTL" envDefault:"30s"`

	// Ledger engine
	MaxCommitRetries     int             `env:"MAX_COMMIT_RETRIES" envDefault:"3"`
	RetryInitialInterval time.Duration   `env:"RETRY_INITIAL_INTERVAL" envDefault:"10ms"`
	MaxWithdrawalAmount  decimal.Decimal `env:"MAX_WITHDRAWAL_AMOUNT" envDefault:"0"`
	MaxTransferAmount    decimal.Decimal `env:"MAX_TRANSFER_AMOUNT" envDefault:"0"`

	// Promo expiry worker
	PromoExpiryInterval  time.Duration `env:"PROMO_EXPIRY_INTERVAL" envDefault:"1m"`
	PromoExpiryBatchSize int           `env:"PROMO_EXPIRY_BATCH_SIZE" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelServiceName          string `env:"OTEL_SERVICE_NAME" envDefault:"funds-ledger"`
	OTelExporterType         string `env:"OTEL_EXPORTER_TYPE" envDefault:"console"`
	OTelOTLPEndpoint         string `env:"OTEL_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelExportIntervalMillis int    `env:"OTEL_EXPORT_INTERVAL_MILLIS" envDefault:"10000"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UseMemoryStore reports whether the ledger runs on the in-process store
func (c *Config) UseMemoryStore() bool {
	return c.Store == StoreMemory
}

// load reads an optional .env file and then the process environment
func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse builds a Config from the environment and validates it
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.Environment != "test" && c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("LEDGER_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.MaxCommitRetries < 0 {
		return fmt.Errorf("MAX_COMMIT_RETRIES cannot be negative")
	}
	if c.MaxWithdrawalAmount.IsNegative() || c.MaxTransferAmount.IsNegative() {
		return fmt.Errorf("limits cannot be negative")
	}
	if c.PromoExpiryInterval <= 0 {
		return fmt.Errorf("PROMO_EXPIRY_INTERVAL must be positive")
	}
	return nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the global logrus logger
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Store:                StoreMemory,
		HTTPAddr:             ":0",
		BalanceCacheTTL:      30 * time.Second,
		MaxCommitRetries:     3,
		RetryInitialInterval: time.Millisecond,
		PromoExpiryInterval:  time.Minute,
		PromoExpiryBatchSize: 100,
		LogLevel:             "info",
		LogFormat:            "text",
		OTelServiceName:      "funds-ledger",
		OTelExporterType:     "none",
		Environment:          "test",
	}
}
