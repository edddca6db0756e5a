package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"wmshub/internal/warehouse"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" envDefault:"development"`

	// Service
	TCPHost         string `env:"TCP_HOST" envDefault:"0.0.0.0"`
	TCPPort         int    `env:"TCP_PORT" envDefault:"5003"`
	ZonesFile       string `env:"ZONES_FILE"`
	SeedSampleData  bool   `env:"SEED_SAMPLE_DATA" envDefault:"false"`
	MaxPayloadBytes uint32 `env:"MAX_PAYLOAD_BYTES" envDefault:"1048576"`

	// Per-connection limits
	RateLimit    float64       `env:"RATE_LIMIT" envDefault:"0"` // frames per second, 0 disables
	RateBurst    int           `env:"RATE_BURST" envDefault:"20"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`

	// Redis mirror
	RedisURL      string        `env:"REDIS_URL"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisChannel  string        `env:"REDIS_CHANNEL" envDefault:"wms:package_updates"`
	RedisKeyTTL   time.Duration `env:"REDIS_KEY_TTL" envDefault:"0s"`

	// Postgres audit trail
	DatabaseURL string `env:"DATABASE_URL"`

	// Journal
	JournalBuffer        int           `env:"JOURNAL_BUFFER" envDefault:"10000"`
	JournalBatchSize     int           `env:"JOURNAL_BATCH_SIZE" envDefault:"500"`
	JournalFlushInterval time.Duration `env:"JOURNAL_FLUSH_INTERVAL" envDefault:"1s"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

// LoadConfig loads configuration from environment variables, reading a
// .env file first when one exists.
func LoadConfig() (*Config, error) {
	// a missing .env is fine, system env vars still apply
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errs []string

	if c.TCPPort < 1 || c.TCPPort > 65535 {
		errs = append(errs, "TCP_PORT must be between 1 and 65535")
	}
	if c.MaxPayloadBytes == 0 {
		errs = append(errs, "MAX_PAYLOAD_BYTES must be positive")
	}
	if c.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, "RATE_BURST must be at least 1 when RATE_LIMIT is set")
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, "WRITE_TIMEOUT must be positive")
	}
	if c.RedisKeyTTL < 0 {
		errs = append(errs, "REDIS_KEY_TTL must not be negative")
	}
	if c.JournalBuffer < 1 || c.JournalBatchSize < 1 {
		errs = append(errs, "JOURNAL_BUFFER and JOURNAL_BATCH_SIZE must be positive")
	}
	if c.JournalFlushInterval <= 0 {
		errs = append(errs, "JOURNAL_FLUSH_INTERVAL must be positive")
	}
	if c.IsProduction() && c.SeedSampleData {
		errs = append(errs, "SEED_SAMPLE_DATA is not allowed when GO_ENV=production")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Addr is the TCP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.TCPHost, strconv.Itoa(c.TCPPort))
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// zonesFile is the on-disk layout:
//
//	[[zone]]
//	id = "A"
//	capacity = 100
type zonesFile struct {
	Zones []warehouse.ZoneSpec `toml:"zone"`
}

// LoadZones reads the zone layout from a TOML file. An empty path yields
// the default A/B/C floor.
func LoadZones(path string) ([]warehouse.ZoneSpec, error) {
	if path == "" {
		return warehouse.DefaultZones(), nil
	}
	var f zonesFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("zones file %s: unknown keys %v", path, undecoded)
	}
	if len(f.Zones) == 0 {
		return nil, fmt.Errorf("zones file %s defines no [[zone]] entries", path)
	}
	return f.Zones, nil
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
