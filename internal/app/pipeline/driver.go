// Package pipeline drives lines from a source through extraction and
// normalization into a sink, one line at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FatalError ends a run. Stage names the step that failed; Err wraps
// ports.ErrSourceUnavailable, ports.ErrSourceFailed or ports.ErrSinkFailed.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// Config is everything a Driver needs. All collaborators are required.
type Config struct {
	Source      ports.LineSource
	Extractor   ports.Extractor
	Normalizer  ports.Normalizer
	Sink        ports.Sink
	Obs         ports.Observability
	ReadTimeout time.Duration
}

type Driver struct {
	source      ports.LineSource
	extractor   ports.Extractor
	normalizer  ports.Normalizer
	sink        ports.Sink
	obs         ports.Observability
	readTimeout time.Duration

	state   atomic.Int32
	started atomic.Bool
}

// sizer is implemented by sinks that can report their on-disk size.
type sizer interface {
	Size() int64
}

func NewDriver(cfg Config) (*Driver, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("pipeline: line source is required")
	case cfg.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case cfg.Normalizer == nil:
		return nil, errors.New("pipeline: normalizer is required")
	case cfg.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	case cfg.Obs == nil:
		return nil, errors.New("pipeline: observability is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	return &Driver{
		source:      cfg.Source,
		extractor:   cfg.Extractor,
		normalizer:  cfg.Normalizer,
		sink:        cfg.Sink,
		obs:         cfg.Obs,
		readTimeout: cfg.ReadTimeout,
	}, nil
}

func (d *Driver) State() State { return State(d.state.Load()) }

// Run executes one pipeline run. It returns nil when ctx is cancelled or the
// source reaches end of stream, and a *FatalError when the source or sink
// fails. Source and sink are released on every path. A Driver runs once.
func (d *Driver) Run(ctx context.Context) (err error) {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("pipeline: driver already ran")
	}
	d.setState(StateStarting)

	var sourceOpen, sinkOpen bool
	defer func() {
		d.setState(StateStopping)
		if sourceOpen {
			if cerr := d.source.Close(); cerr != nil {
				d.obs.LogError("source_close_failed", cerr, ports.Field{Key: "source", Value: d.source.Name()})
			}
		}
		if sinkOpen {
			if cerr := d.sink.Close(); cerr != nil {
				if err == nil {
					d.obs.LogCritical("sink_close_failed", cerr, ports.Field{Key: "sink", Value: d.sink.Name()})
					err = d.fatal("sink_close", ports.ErrSinkFailed, cerr)
				} else {
					d.obs.LogError("sink_close_failed", cerr, ports.Field{Key: "sink", Value: d.sink.Name()})
				}
			}
		}
		d.setState(StateStopped)
	}()

	if err := d.source.Open(ctx); err != nil {
		d.obs.LogCritical("source_open_failed", err, ports.Field{Key: "source", Value: d.source.Name()})
		return d.fatal("source_open", ports.ErrSourceUnavailable, err)
	}
	sourceOpen = true

	if err := d.sink.Open(); err != nil {
		d.obs.LogCritical("sink_open_failed", err, ports.Field{Key: "sink", Value: d.sink.Name()})
		return d.fatal("sink_open", ports.ErrSinkFailed, err)
	}
	sinkOpen = true

	if err := d.sink.EnsureHeader(); err != nil {
		d.obs.LogCritical("sink_header_failed", err, ports.Field{Key: "sink", Value: d.sink.Name()})
		return d.fatal("sink_header", ports.ErrSinkFailed, err)
	}
	d.reportSinkSize()

	d.setState(StateRunning)
	return d.loop(ctx)
}

func (d *Driver) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			d.obs.LogInfo("stop_requested")
			return nil
		}

		line, err := d.source.ReadLine(ctx, d.readTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrNoLine):
			d.obs.IncCounter(ports.MetricReadTimeouts, 1)
			continue
		case errors.Is(err, io.EOF):
			d.obs.LogInfo("source_drained", ports.Field{Key: "source", Value: d.source.Name()})
			return nil
		case ctx.Err() != nil:
			d.obs.LogInfo("stop_requested")
			return nil
		default:
			d.obs.LogCritical("source_read_failed", err, ports.Field{Key: "source", Value: d.source.Name()})
			return d.fatal("source_read", ports.ErrSourceFailed, err)
		}

		d.obs.IncCounter(ports.MetricLinesRead, 1)
		if err := d.process(line); err != nil {
			return err
		}
	}
}

// process handles one line. Only a sink failure is returned.
func (d *Driver) process(line string) error {
	reading, err := d.extractor.Extract(line)
	if err != nil {
		if !errors.Is(err, ports.ErrEmptyLine) {
			d.obs.RecordSkipped(line, err)
		}
		return nil
	}

	rec := d.normalizer.Normalize(reading)

	start := time.Now()
	if err := d.sink.Append(rec); err != nil {
		d.obs.LogCritical("sink_append_failed", err, ports.Field{Key: "sink", Value: d.sink.Name()})
		return d.fatal("sink_append", ports.ErrSinkFailed, err)
	}
	d.obs.ObserveLatency(ports.MetricAppendLatency, time.Since(start).Seconds())
	d.obs.IncCounter(ports.MetricRowsAppended, 1)
	d.reportSinkSize()

	d.obs.LogInfo("line_accepted", acceptedFields(rec)...)
	return nil
}

func acceptedFields(rec domain.Record) []ports.Field {
	fields := []ports.Field{
		{Key: "host_time", Value: rec.HostTimestamp()},
		{Key: "temperature", Value: rec.Temperature},
	}
	if rec.Kind == domain.KindObject {
		fields = append(fields,
			ports.Field{Key: "id", Value: rec.ID},
			ports.Field{Key: "humidity", Value: rec.Humidity},
		)
	}
	return fields
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.obs.SetGauge(ports.MetricPipelineState, float64(s))
	d.obs.LogInfo("pipeline_state", ports.Field{Key: "state", Value: s.String()})
}

func (d *Driver) reportSinkSize() {
	if sz, ok := d.sink.(sizer); ok {
		d.obs.SetGauge(ports.MetricSinkSizeBytes, float64(sz.Size()))
	}
}

// fatal wraps err with class unless it already carries it.
func (d *Driver) fatal(stage string, class, err error) *FatalError {
	if !errors.Is(err, class) {
		err = fmt.Errorf("%w: %w", class, err)
	}
	return &FatalError{Stage: stage, Err: err}
}
