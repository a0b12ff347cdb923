package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/sensorlog/internal/adapters/sink"
	"github.com/ghalamif/sensorlog/internal/adapters/source"
	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

type Config struct {
	Source  source.Config `yaml:"source"`
	Schema  SchemaConfig  `yaml:"schema"`
	Sink    sink.Config   `yaml:"sink"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type SchemaConfig struct {
	Variant         domain.Kind                 `yaml:"variant"`
	DeviceTimestamp ports.DeviceTimestampPolicy `yaml:"device_timestamp"`
	Rounding        ports.RoundingMode          `yaml:"rounding"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Schema.Variant == "" {
		c.Schema.Variant = domain.KindScalar
	}
	if c.Schema.DeviceTimestamp == "" {
		c.Schema.DeviceTimestamp = ports.DeviceTimestampDrop
	}
	if c.Schema.Rounding == "" {
		c.Schema.Rounding = ports.RoundHalfAwayFromZero
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.Source.ApplyDefaults()
	c.Sink.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}
	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	switch c.Schema.Variant {
	case domain.KindScalar, domain.KindObject:
	default:
		return fmt.Errorf("schema.variant must be scalar or object, got %q", c.Schema.Variant)
	}
	switch c.Schema.DeviceTimestamp {
	case ports.DeviceTimestampDrop, ports.DeviceTimestampKeep:
	default:
		return fmt.Errorf("schema.device_timestamp must be drop or keep, got %q", c.Schema.DeviceTimestamp)
	}
	if c.Schema.Variant == domain.KindScalar && c.Schema.DeviceTimestamp == ports.DeviceTimestampKeep {
		return fmt.Errorf("schema.device_timestamp=keep requires schema.variant=object")
	}
	switch c.Schema.Rounding {
	case ports.RoundHalfAwayFromZero, ports.RoundHalfEven:
	default:
		return fmt.Errorf("schema.rounding must be half_away_from_zero or half_even, got %q", c.Schema.Rounding)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if !c.Metrics.Disabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}

// OutputSchema returns the column layout selected by the schema settings.
func (c *Config) OutputSchema() domain.Schema {
	if c.Schema.Variant == domain.KindObject {
		return domain.ObjectSchema(c.Schema.DeviceTimestamp == ports.DeviceTimestampKeep)
	}
	return domain.ScalarSchema()
}
