package sensorlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/sensorlog/internal/adapters/extract"
	"github.com/ghalamif/sensorlog/internal/adapters/normalize"
	"github.com/ghalamif/sensorlog/internal/adapters/observability"
	"github.com/ghalamif/sensorlog/internal/adapters/sink"
	"github.com/ghalamif/sensorlog/internal/adapters/source"
	"github.com/ghalamif/sensorlog/internal/app/pipeline"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        LineSource
	extractor     Extractor
	normalizer    Normalizer
	sink          Sink
	observability Observability
	logger        *slog.Logger
	clock         func() time.Time
}

// WithSource injects a custom line source (simulators, sockets, test feeds).
func WithSource(src LineSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithExtractor overrides the extractor selected by schema.variant.
func WithExtractor(ext Extractor) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.extractor = ext
	}
}

// WithNormalizer overrides the default normalizer.
func WithNormalizer(n Normalizer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.normalizer = n
	}
}

// WithSink injects a custom sink in place of the configured store.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom diagnostics backend. The metrics server
// then only exposes Go runtime collectors.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the logger built from the log config.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithClock overrides the wall clock used for host timestamps.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = now
	}
}

// Runtime wires source → extractor → normalizer → sink for one run and
// exposes the metrics endpoint while it runs.
type Runtime struct {
	cfg        *Config
	runID      string
	logger     *slog.Logger
	registry   *prometheus.Registry
	obs        ports.Observability
	source     ports.LineSource
	extractor  ports.Extractor
	normalizer ports.Normalizer
	sink       ports.Sink
	driver     *pipeline.Driver

	metricsSrv  *http.Server
	metricsAddr string
}

// NewRuntime builds the configured adapters (line source, extractor,
// normalizer, sink, Prometheus observability). Nothing is opened until Run.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	runID := uuid.NewString()
	logger := overrides.logger
	if logger == nil {
		logger = observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	}
	logger = logger.With("run_id", runID)
	logf := func(format string, args ...any) { logger.Info(fmt.Sprintf(format, args...)) }

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(logger, registry)
	}

	schema := cfg.OutputSchema()

	var err error
	src := overrides.source
	if src == nil {
		src, err = source.New(cfg.Source, logf)
		if err != nil {
			return nil, err
		}
	}

	ext := overrides.extractor
	if ext == nil {
		ext, err = extract.New(cfg.Schema.Variant, cfg.Schema.DeviceTimestamp)
		if err != nil {
			return nil, err
		}
	}

	norm := overrides.normalizer
	if norm == nil {
		norm = normalize.New(schema, cfg.Schema.Rounding, normalize.WithClock(overrides.clock))
	}

	snk := overrides.sink
	if snk == nil {
		snk, err = sink.New(cfg.Sink, schema, logf)
		if err != nil {
			return nil, err
		}
	}

	driver, err := pipeline.NewDriver(pipeline.Config{
		Source:      src,
		Extractor:   ext,
		Normalizer:  norm,
		Sink:        snk,
		Obs:         obs,
		ReadTimeout: cfg.Source.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:        cfg,
		runID:      runID,
		logger:     logger,
		registry:   registry,
		obs:        obs,
		source:     src,
		extractor:  ext,
		normalizer: norm,
		sink:       snk,
		driver:     driver,
	}, nil
}

// RunID identifies this run in every diagnostic line.
func (r *Runtime) RunID() string { return r.runID }

// State reports the pipeline driver state.
func (r *Runtime) State() State { return r.driver.State() }

// MetricsAddr is the bound metrics listener address once Run has started it.
func (r *Runtime) MetricsAddr() string { return r.metricsAddr }

// Run starts the metrics server and blocks in the pipeline until ctx is
// cancelled, the source ends, or a fatal error occurs. A metrics listener
// that cannot bind is logged and skipped. A clean stop returns
// nil; fatal errors unwrap to a *FatalError.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if !r.cfg.Metrics.Disabled {
		// Metrics are diagnostics only; the run goes on without the endpoint.
		if err := r.startMetrics(); err != nil {
			r.logger.Error("metrics_listen_failed", "addr", r.cfg.Metrics.Addr, "err", err)
		}
	}

	r.logger.Info("run_started",
		"source", r.source.Name(),
		"sink", r.sink.Name(),
		"schema", string(r.cfg.Schema.Variant))

	runErr := r.driver.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server. The driver releases the source and sink
// itself when Run returns.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.metricsSrv == nil {
		return nil
	}
	if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Runtime) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	r.metricsAddr = ln.Addr().String()
	r.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server exited", "err", err)
		}
	}()
	return nil
}
