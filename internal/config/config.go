// Package config loads stockcore runtime configuration from an optional YAML
// file overlaid with STOCKCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOCKCORE_"

// Config is the full runtime configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Policy   PolicyConfig   `yaml:"policy"`
	Register RegisterConfig `yaml:"register"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects the ledger archive backend.
type ArchiveConfig struct {
	Driver      string `yaml:"driver"`
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds engine policies.
type PolicyConfig struct {
	// NegativeStock is "allow" or "reject".
	NegativeStock string `yaml:"negative_stock"`
}

// RegisterConfig bounds register amounts.
type RegisterConfig struct {
	StartingCashCeiling decimal.Decimal `yaml:"starting_cash_ceiling"`
	TransactionCeiling  decimal.Decimal `yaml:"transaction_ceiling"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls operation metrics and tracing.
type MetricsConfig struct {
	// TextfilePath, when set, receives the Prometheus metrics of the
	// invocation in node_exporter textfile format.
	TextfilePath string `yaml:"textfile_path"`
	// Trace writes one JSON span per operation to stderr.
	Trace bool `yaml:"trace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage:  StorageConfig{Driver: "sqlite", SQLitePath: "stockcore.db"},
		Archive:  ArchiveConfig{Driver: "fs", FSRoot: "./archive", S3Region: "us-east-1"},
		Policy:   PolicyConfig{NegativeStock: "allow"},
		Register: RegisterConfig{StartingCashCeiling: decimal.NewFromInt(100000), TransactionCeiling: decimal.NewFromInt(100000)},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("ARCHIVE_DRIVER", &c.Archive.Driver)
	str("ARCHIVE_FS_ROOT", &c.Archive.FSRoot)
	str("ARCHIVE_S3_BUCKET", &c.Archive.S3Bucket)
	str("ARCHIVE_S3_REGION", &c.Archive.S3Region)
	str("ARCHIVE_S3_ENDPOINT", &c.Archive.S3Endpoint)
	str("NEGATIVE_STOCK_POLICY", &c.Policy.NegativeStock)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_TEXTFILE", &c.Metrics.TextfilePath)

	for name, dst := range map[string]*bool{
		"ARCHIVE_S3_PATH_STYLE": &c.Archive.S3PathStyle,
		"TRACE":                 &c.Metrics.Trace,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
	}
	for name, dst := range map[string]*decimal.Decimal{
		"REGISTER_STARTING_CASH_CEILING": &c.Register.StartingCashCeiling,
		"REGISTER_TRANSACTION_CEILING":   &c.Register.TransactionCeiling,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}
	return nil
}

// Validate rejects unknown drivers and policies and non-positive ceilings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	switch c.Archive.Driver {
	case "memory", "fs":
	case "s3":
		if c.Archive.S3Bucket == "" {
			errs = append(errs, errors.New("archive.s3_bucket: required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.driver: unknown driver %q", c.Archive.Driver))
	}
	switch strings.ToLower(c.Policy.NegativeStock) {
	case "allow", "reject":
	default:
		errs = append(errs, fmt.Errorf("policy.negative_stock: must be allow or reject, got %q", c.Policy.NegativeStock))
	}
	if !c.Register.StartingCashCeiling.IsPositive() {
		errs = append(errs, errors.New("register.starting_cash_ceiling: must be positive"))
	}
	if !c.Register.TransactionCeiling.IsPositive() {
		errs = append(errs, errors.New("register.transaction_ceiling: must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
