package sensorlog

import (
	"context"
	"errors"
)

// Flow assembles a Runtime in reading order: config, then where lines come
// from, then where records go. Overrides left unset fall back to what the
// config selects.
type Flow struct {
	cfg *Config

	source    LineSource
	extractor Extractor
	sink      Sink
	obs       Observability
	extra     []RuntimeOption
}

// FlowOption adjusts a Flow right after its config is known.
type FlowOption func(*Flow)

// StreamInOption replaces the line source or extractor.
type StreamInOption func(*Flow)

// StreamOutOption replaces the record sink or the observability backend.
type StreamOutOption func(*Flow)

// Conf reads the YAML config at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("sensorlog: config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config is the Flow's live config; edits made before StreamOUT take effect.
func (f *Flow) Config() *Config { return f.cfg }

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the sink side overrides and builds the Runtime. The
// config is validated here, not in Conf.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.runtimeOptions()...)
}

// Run builds the Runtime and drives it until the source ends, ctx is
// cancelled or a fatal stage error stops it.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func (f *Flow) runtimeOptions() []RuntimeOption {
	opts := append([]RuntimeOption(nil), f.extra...)
	if f.source != nil {
		opts = append(opts, WithSource(f.source))
	}
	if f.extractor != nil {
		opts = append(opts, WithExtractor(f.extractor))
	}
	if f.sink != nil {
		opts = append(opts, WithSink(f.sink))
	}
	if f.obs != nil {
		opts = append(opts, WithObservability(f.obs))
	}
	return opts
}

// WithFlowOptions passes runtime options such as WithLogger or WithClock
// through to the Runtime the Flow builds.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		for _, opt := range opts {
			if opt != nil {
				f.extra = append(f.extra, opt)
			}
		}
	}
}

// StreamInSource reads lines from src instead of the configured serial port,
// broker or file.
func StreamInSource(src LineSource) StreamInOption {
	return func(f *Flow) {
		if src != nil {
			f.source = src
		}
	}
}

// StreamInFeed reads lines the caller publishes on feed.
func StreamInFeed(feed *LineFeed) StreamInOption {
	return func(f *Flow) {
		if feed != nil {
			f.source = feed
		}
	}
}

// StreamInExtractor parses lines with ext regardless of schema.variant.
func StreamInExtractor(ext Extractor) StreamInOption {
	return func(f *Flow) {
		if ext != nil {
			f.extractor = ext
		}
	}
}

// StreamOutSink appends records to s instead of the configured CSV file or
// database.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.sink = s
		}
	}
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.obs = obs
		}
	}
}

// StreamOutCallback hands every committed record to fn; an error from fn
// stops the run like any other sink failure.
func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return func(f *Flow) {
		if fn != nil {
			f.sink = NewCallbackSink(name, fn)
		}
	}
}
