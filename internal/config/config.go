// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Workers      int           `mapstructure:"workers"`
	DebugLogging bool          `mapstructure:"debug_logging"`
	LogFile      string        `mapstructure:"log_file"`
	Storage      StorageConfig `mapstructure:"storage"`
	Events       EventsConfig  `mapstructure:"events"`
	AMM          AMMConfig     `mapstructure:"amm"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type EventsConfig struct {
	BufferSize    int    `mapstructure:"buffer_size"`
	ClickHouseURL string `mapstructure:"clickhouse_url"`
	JournalFile   string `mapstructure:"journal_file"` // CSV event journal, off when empty
}

type AMMConfig struct {
	Pricing string `mapstructure:"pricing"`
}

const (
	DefaultWorkers    = 4
	DefaultBufferSize = 256
	DefaultPricing    = "literal"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"workers":               DefaultWorkers,
		"debug_logging":         false,
		"log_file":              "",
		"storage.driver":        DriverMemory,
		"storage.postgres_url":  "",
		"events.buffer_size":    DefaultBufferSize,
		"events.clickhouse_url": "",
		"events.journal_file":   "",
		"amm.pricing":           DefaultPricing,
	}
}

// LoadConfig reads the config file at path. An empty path uses defaults and
// the environment only. LEDGER_-prefixed variables override file values,
// e.g. LEDGER_STORAGE_POSTGRES_URL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Workers < 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}

	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
		if err := validateURL(cfg.Storage.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("invalid storage.postgres_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}

	if cfg.Events.ClickHouseURL != "" {
		if err := validateURL(cfg.Events.ClickHouseURL, "clickhouse"); err != nil {
			return fmt.Errorf("invalid events.clickhouse_url: %w", err)
		}
	}

	switch cfg.AMM.Pricing {
	case "literal", "exact":
	default:
		return fmt.Errorf("unknown amm.pricing %q", cfg.AMM.Pricing)
	}
	return nil
}

func validateURL(rawURL string, scheme string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return fmt.Errorf("expected %s:// URL", scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
