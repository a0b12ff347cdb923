package observability

import (
	"context"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/sensorlog/internal/ports"
)

const (
	maxLoggedLineLength = 160
	levelCritical       = slog.LevelError + 4
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline collectors on reg (the default registerer
// when nil) and logs through logger (slog.Default when nil).
func NewPromObs(logger *slog.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	linesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricLinesRead,
		Help: "Lines received from the line source, including empty ones.",
	})
	appended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRowsAppended,
		Help: "Rows durably appended to the sink.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricLinesSkipped,
		Help: "Non-empty lines that produced no row.",
	})
	timeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricReadTimeouts,
		Help: "Line source reads that timed out with no data.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricAppendLatency,
		Help:    "Latency of a single append including fsync.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricPipelineState,
		Help: "Pipeline driver state: 0 starting, 1 running, 2 stopping, 3 stopped.",
	})
	sinkSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricSinkSizeBytes,
		Help: "Size of the CSV log on disk.",
	})

	reg.MustRegister(linesRead, appended, skipped, timeouts, latency, state, sinkSize)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricLinesRead:    linesRead,
			ports.MetricRowsAppended: appended,
			ports.MetricLinesSkipped: skipped,
			ports.MetricReadTimeouts: timeouts,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricPipelineState: state,
			ports.MetricSinkSizeBytes: sinkSize,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricAppendLatency: latency,
		},
	}
}

// NewLogger builds the slog logger used for diagnostics.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), slog.Any("error", err))...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Log(context.Background(), levelCritical, msg, append(attrs(fields), slog.Any("error", err))...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordSkipped(line string, err error) {
	p.IncCounter(ports.MetricLinesSkipped, 1)
	p.logger.Info("line_skipped", slog.String("line", truncate(line, maxLoggedLineLength)), slog.Any("reason", err))
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}

var _ ports.Observability = (*PromObs)(nil)
