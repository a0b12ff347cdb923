package sensorlog

import (
	base "github.com/ghalamif/sensorlog/pkg/sensorlog"
)

// Re-exported errors for convenience.
var (
	ErrSourceUnavailable = base.ErrSourceUnavailable
	ErrSourceFailed      = base.ErrSourceFailed
	ErrSinkFailed        = base.ErrSinkFailed
	ErrSchemaMismatch    = base.ErrSchemaMismatch
	ErrNoMatch           = base.ErrNoMatch
	ErrMalformed         = base.ErrMalformed
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrFeedClosed        = base.ErrFeedClosed
)

// Type aliases so consumers can import github.com/ghalamif/sensorlog directly.
type (
	Config          = base.Config
	SourceConfig    = base.SourceConfig
	SerialConfig    = base.SerialConfig
	MQTTConfig      = base.MQTTConfig
	KafkaConfig     = base.KafkaConfig
	FileConfig      = base.FileConfig
	SchemaConfig    = base.SchemaConfig
	SinkConfig      = base.SinkConfig
	CSVConfig       = base.CSVConfig
	TimescaleConfig = base.TimescaleConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Record          = base.Record
	Reading         = base.Reading
	ScalarReading   = base.ScalarReading
	ObjectReading   = base.ObjectReading
	RecordHandler   = base.RecordHandler
	LineSource      = base.LineSource
	LineFeed        = base.LineFeed
	Extractor       = base.Extractor
	Normalizer      = base.Normalizer
	Sink            = base.Sink
	Observability   = base.Observability
	Field           = base.Field
	State           = base.State
	FatalError      = base.FatalError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src LineSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInFeed(feed *LineFeed) StreamInOption {
	return base.StreamInFeed(feed)
}

func StreamInExtractor(ext Extractor) StreamInOption {
	return base.StreamInExtractor(ext)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src LineSource) RuntimeOption {
	return base.WithSource(src)
}

func WithExtractor(ext Extractor) RuntimeOption {
	return base.WithExtractor(ext)
}

func WithNormalizer(n Normalizer) RuntimeOption {
	return base.WithNormalizer(n)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn RecordHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	return base.NewChannelSink(name, buffer)
}

// Line feed.
func NewLineFeed(buffer int) *LineFeed {
	return base.NewLineFeed(buffer)
}
