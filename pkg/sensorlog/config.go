package sensorlog

import (
	"github.com/ghalamif/sensorlog/internal/adapters/sink"
	"github.com/ghalamif/sensorlog/internal/adapters/source"
	"github.com/ghalamif/sensorlog/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SourceConfig selects the line transport.
	SourceConfig = source.Config
	// SerialConfig holds the serial port settings.
	SerialConfig = source.SerialConfig
	// MQTTConfig holds the broker and topic a line source subscribes to.
	MQTTConfig = source.MQTTConfig
	// KafkaConfig holds the brokers and topic a line source consumes.
	KafkaConfig = source.KafkaConfig
	// FileConfig points a line source at a capture file.
	FileConfig = source.FileConfig
	// SchemaConfig selects the output schema, timestamp policy and rounding.
	SchemaConfig = config.SchemaConfig
	// SinkConfig selects the durable store.
	SinkConfig = sink.Config
	// CSVConfig configures the CSV log.
	CSVConfig = sink.CSVConfig
	// TimescaleConfig configures the Postgres/Timescale store.
	TimescaleConfig = sink.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures diagnostics.
	LogConfig = config.LogConfig
)

// Source and sink kinds accepted in configuration.
const (
	SourceSerial = source.KindSerial
	SourceMQTT   = source.KindMQTT
	SourceKafka  = source.KindKafka
	SourceStdin  = source.KindStdin
	SourceFile   = source.KindFile

	SinkCSV       = sink.KindCSV
	SinkTimescale = sink.KindTimescale
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied: serial
// source, scalar schema, CSV sink.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
