package sensorlog

import (
	"github.com/ghalamif/sensorlog/internal/app/pipeline"
	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// Record is a normalized reading as it is appended to the sink.
type Record = domain.Record

// Reading is the output of extraction: ScalarReading or ObjectReading.
type Reading = domain.Reading

type (
	ScalarReading = domain.ScalarReading
	ObjectReading = domain.ObjectReading
)

// Schema is the fixed column layout of a store.
type Schema = domain.Schema

// LineSource yields text lines from any transport (serial, MQTT, files, etc.).
type LineSource = ports.LineSource

// Extractor turns one raw line into at most one Reading.
type Extractor = ports.Extractor

// Normalizer applies rounding, host timestamp and field policy.
type Normalizer = ports.Normalizer

// Sink is a single-writer, append-only store with a fixed header.
type Sink = ports.Sink

// Observability emits diagnostics and metrics about the run.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// State is the pipeline driver state.
type State = pipeline.State

// FatalError is returned by Run when the source or sink fails.
type FatalError = pipeline.FatalError

const (
	StateStarting = pipeline.StateStarting
	StateRunning  = pipeline.StateRunning
	StateStopping = pipeline.StateStopping
	StateStopped  = pipeline.StateStopped
)

// Error classes. Use errors.Is against the error returned by Run.
var (
	ErrNoLine            = ports.ErrNoLine
	ErrEmptyLine         = ports.ErrEmptyLine
	ErrNoMatch           = ports.ErrNoMatch
	ErrMalformed         = ports.ErrMalformed
	ErrSourceUnavailable = ports.ErrSourceUnavailable
	ErrSourceFailed      = ports.ErrSourceFailed
	ErrSinkFailed        = ports.ErrSinkFailed
	ErrSchemaMismatch    = ports.ErrSchemaMismatch
)
