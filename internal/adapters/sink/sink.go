// Package sink holds the durable stores a pipeline appends records to.
package sink

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

const (
	KindCSV       = "csv"
	KindTimescale = "timescale"
)

type Config struct {
	Kind      string          `yaml:"kind"`
	CSV       CSVConfig       `yaml:"csv"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type CSVConfig struct {
	Path string `yaml:"path"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindCSV
	}
	if c.CSV.Path == "" {
		c.CSV.Path = "sensor_data.csv"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "sensor_readings"
	}
}

func (c *Config) Validate() error {
	switch c.Kind {
	case KindCSV:
		if c.CSV.Path == "" {
			return errors.New("csv.path is required")
		}
	case KindTimescale:
		if c.Timescale.ConnString == "" {
			return errors.New("timescale.conn_string is required")
		}
		if !tableName.MatchString(c.Timescale.Table) {
			return fmt.Errorf("timescale.table %q is not a valid identifier", c.Timescale.Table)
		}
	default:
		return fmt.Errorf("unknown sink kind %q", c.Kind)
	}
	return nil
}

// New builds the configured sink. It does not open it.
func New(cfg Config, schema domain.Schema, logf func(string, ...any)) (ports.Sink, error) {
	switch cfg.Kind {
	case KindCSV:
		return NewCSVSink(cfg.CSV.Path, schema, logf), nil
	case KindTimescale:
		db, err := sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		return NewTimescaleSink(db, cfg.Timescale.Table, schema), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}
