package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/sensorlog/internal/adapters/extract"
	"github.com/ghalamif/sensorlog/internal/adapters/normalize"
	"github.com/ghalamif/sensorlog/internal/adapters/sink"
	"github.com/ghalamif/sensorlog/internal/adapters/source"
	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

func clock() time.Time { return fixedNow }

func newDriver(t *testing.T, src ports.LineSource, kind domain.Kind, snk ports.Sink, obs *mockObs) *Driver {
	t.Helper()
	schema := domain.ScalarSchema()
	if kind == domain.KindObject {
		schema = domain.ObjectSchema(false)
	}
	ext, err := extract.New(kind, ports.DeviceTimestampDrop)
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	d, err := NewDriver(Config{
		Source:      src,
		Extractor:   ext,
		Normalizer:  normalize.New(schema, ports.RoundHalfAwayFromZero, normalize.WithClock(clock)),
		Sink:        snk,
		Obs:         obs,
		ReadTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return d
}

func TestDriverScalarLinesToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_data.csv")
	input := strings.Join([]string{
		"I (71183) CENTRAL_NODE: Received Temperature: 28.00 °C",
		"garbage no marker here",
		"",
		"I (72183) CENTRAL_NODE: Received Temperature: -3.456 °C",
		"I (73183) CENTRAL_NODE: Received Temperature: abc °C",
		"I (74183) CENTRAL_NODE: Received Temperature: 19.5 °C",
	}, "\n") + "\n"

	src := source.NewReaderSource("test", strings.NewReader(input), ports.DecodeDrop, 4096)
	obs := &mockObs{}
	d := newDriver(t, src, domain.KindScalar, sink.NewCSVSink(path, domain.ScalarSchema(), nil), obs)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", d.State())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "Timestamp,Temperature_C\n" +
		"2024-05-01 12:00:00,28.00\n" +
		"2024-05-01 12:00:00,-3.46\n" +
		"2024-05-01 12:00:00,19.50\n"
	if string(data) != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", data, want)
	}

	if len(obs.skipped) != 2 {
		t.Fatalf("expected 2 skipped lines (garbage, malformed), got %v", obs.skipped)
	}
	if !errors.Is(obs.skippedErrs[0], ports.ErrNoMatch) || !errors.Is(obs.skippedErrs[1], ports.ErrMalformed) {
		t.Fatalf("unexpected skip reasons %v", obs.skippedErrs)
	}
	if got := obs.count("line_accepted"); got != 3 {
		t.Fatalf("expected 3 line_accepted events, got %d", got)
	}
	if obs.counters[ports.MetricRowsAppended] != 3 || obs.counters[ports.MetricLinesRead] != 6 {
		t.Fatalf("unexpected counters %v", obs.counters)
	}
	if obs.gauges[ports.MetricSinkSizeBytes] != float64(len(want)) {
		t.Fatalf("expected sink size gauge %d, got %v", len(want), obs.gauges[ports.MetricSinkSizeBytes])
	}
}

func TestDriverObjectLineDropsDeviceTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_data.csv")
	input := `Raw Data: {"id": 3, "temperature": 24.567, "humidity": 55.1, "timestamp": "ignored"}` + "\n"

	src := source.NewReaderSource("test", strings.NewReader(input), ports.DecodeDrop, 4096)
	d := newDriver(t, src, domain.KindObject, sink.NewCSVSink(path, domain.ObjectSchema(false), nil), &mockObs{})

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "id,temperature,humidity,datetime\n3,24.57,55.1,2024-05-01 12:00:00\n"
	if string(data) != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", data, want)
	}
}

func TestDriverHeaderWrittenOnceAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_data.csv")
	line := "Received Temperature: 21.00\n"

	for i := 0; i < 3; i++ {
		src := source.NewReaderSource("test", strings.NewReader(line), ports.DecodeDrop, 4096)
		d := newDriver(t, src, domain.KindScalar, sink.NewCSVSink(path, domain.ScalarSchema(), nil), &mockObs{})
		if err := d.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	rows := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d: %q", len(rows), rows)
	}
	if strings.Count(string(data), "Timestamp,Temperature_C") != 1 {
		t.Fatalf("header repeated:\n%s", data)
	}
}

func TestDriverPreservesOrder(t *testing.T) {
	snk := &mockSink{}
	src := &mockSource{results: []readResult{
		{line: "Received Temperature: 1.00"},
		{err: ports.ErrNoLine},
		{line: "Received Temperature: 2.00"},
		{line: "Received Temperature: 3.00"},
		{err: io.EOF},
	}}
	obs := &mockObs{}
	d := newDriver(t, src, domain.KindScalar, snk, obs)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(snk.records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(snk.records))
	}
	for i, want := range []float64{1, 2, 3} {
		if snk.records[i].Temperature != want {
			t.Fatalf("record %d: expected %v, got %v", i, want, snk.records[i].Temperature)
		}
	}
	if obs.counters[ports.MetricReadTimeouts] != 1 {
		t.Fatalf("expected one read timeout, got %v", obs.counters[ports.MetricReadTimeouts])
	}
	if !src.closed || !snk.closed {
		t.Fatalf("expected source and sink released, source=%v sink=%v", src.closed, snk.closed)
	}
}

func TestDriverSinkFailureIsFatal(t *testing.T) {
	snk := &mockSink{appendErr: errors.New("disk full"), failAt: 2}
	src := &mockSource{results: []readResult{
		{line: "Received Temperature: 1.00"},
		{line: "Received Temperature: 2.00"},
		{line: "Received Temperature: 3.00"},
	}}
	obs := &mockObs{}
	d := newDriver(t, src, domain.KindScalar, snk, obs)

	err := d.Run(context.Background())
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Stage != "sink_append" {
		t.Fatalf("expected sink_append fatal error, got %v", err)
	}
	if !errors.Is(err, ports.ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	if len(snk.records) != 1 {
		t.Fatalf("expected 1 record before failure, got %d", len(snk.records))
	}
	if src.reads != 2 {
		t.Fatalf("expected the run to stop after the failing line, got %d reads", src.reads)
	}
	if !snk.closed || !src.closed {
		t.Fatalf("expected release after failure")
	}
	if obs.count("sink_append_failed") != 1 {
		t.Fatalf("expected one critical diagnostic, got %v", obs.critical)
	}
}

func TestDriverSourceOpenFailure(t *testing.T) {
	snk := &mockSink{}
	src := &mockSource{openErr: errors.New("no such port")}
	d := newDriver(t, src, domain.KindScalar, snk, &mockObs{})

	err := d.Run(context.Background())
	if !errors.Is(err, ports.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if snk.opened {
		t.Fatalf("sink must not be opened when the source is unavailable")
	}
	if src.closed {
		t.Fatalf("source that failed to open must not be closed")
	}
	if d.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", d.State())
	}
}

func TestDriverSinkHeaderFailure(t *testing.T) {
	snk := &mockSink{headerErr: ports.ErrSchemaMismatch}
	src := &mockSource{}
	d := newDriver(t, src, domain.KindScalar, snk, &mockObs{})

	err := d.Run(context.Background())
	if !errors.Is(err, ports.ErrSchemaMismatch) || !errors.Is(err, ports.ErrSinkFailed) {
		t.Fatalf("expected schema mismatch classified as sink failure, got %v", err)
	}
	if !snk.closed || !src.closed {
		t.Fatalf("expected release after header failure")
	}
	if src.reads != 0 {
		t.Fatalf("expected no reads, got %d", src.reads)
	}
}

func TestDriverSourceReadFailure(t *testing.T) {
	snk := &mockSink{}
	src := &mockSource{results: []readResult{
		{line: "Received Temperature: 1.00"},
		{err: errors.New("device unplugged")},
	}}
	d := newDriver(t, src, domain.KindScalar, snk, &mockObs{})

	err := d.Run(context.Background())
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Stage != "source_read" || !errors.Is(err, ports.ErrSourceFailed) {
		t.Fatalf("expected source_read fatal error, got %v", err)
	}
	if len(snk.records) != 1 || !snk.closed {
		t.Fatalf("expected one durable row and a closed sink")
	}
}

func TestDriverCancellationStopsCleanly(t *testing.T) {
	snk := &mockSink{appended: make(chan struct{}, 1)}
	src := &mockSource{
		results: []readResult{{line: "Received Temperature: 5.00"}},
		block:   true,
	}
	d := newDriver(t, src, domain.KindScalar, snk, &mockObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-snk.appended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first append")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("driver did not stop after cancellation")
	}
	if len(snk.records) != 1 || !snk.closed || !src.closed {
		t.Fatalf("expected one row and released handles")
	}
	if d.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", d.State())
	}
}

func TestDriverRunsOnce(t *testing.T) {
	d := newDriver(t, &mockSource{}, domain.KindScalar, &mockSink{}, &mockObs{})
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := d.Run(context.Background()); err == nil {
		t.Fatalf("expected second run to be rejected")
	}
}

func TestNewDriverRequiresCollaborators(t *testing.T) {
	if _, err := NewDriver(Config{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

type readResult struct {
	line string
	err  error
}

// mockSource replays results, then reports io.EOF or blocks until cancelled.
type mockSource struct {
	results []readResult
	block   bool
	openErr error
	reads   int
	closed  bool
}

func (m *mockSource) Open(context.Context) error { return m.openErr }
func (m *mockSource) Name() string               { return "mock" }
func (m *mockSource) Close() error               { m.closed = true; return nil }

func (m *mockSource) ReadLine(ctx context.Context, _ time.Duration) (string, error) {
	if m.reads < len(m.results) {
		r := m.results[m.reads]
		m.reads++
		return r.line, r.err
	}
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "", io.EOF
}

type mockSink struct {
	headerErr error
	appendErr error
	failAt    int
	appended  chan struct{}

	opened  bool
	closed  bool
	calls   int
	records []domain.Record
}

func (m *mockSink) Open() error         { m.opened = true; return nil }
func (m *mockSink) EnsureHeader() error { return m.headerErr }
func (m *mockSink) Close() error        { m.closed = true; return nil }
func (m *mockSink) Name() string        { return "mock" }

func (m *mockSink) Append(rec domain.Record) error {
	m.calls++
	if m.appendErr != nil && m.calls >= m.failAt {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	if m.appended != nil {
		m.appended <- struct{}{}
	}
	return nil
}

type mockObs struct {
	infos       []string
	errors      []string
	critical    []string
	skipped     []string
	skippedErrs []error
	counters    map[string]float64
	gauges      map[string]float64
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) { m.infos = append(m.infos, msg) }
func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.errors = append(m.errors, msg)
}
func (m *mockObs) LogCritical(msg string, _ error, _ ...ports.Field) {
	m.critical = append(m.critical, msg)
}
func (m *mockObs) IncCounter(name string, v float64) {
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(name string, v float64) {
	if m.gauges == nil {
		m.gauges = map[string]float64{}
	}
	m.gauges[name] = v
}
func (m *mockObs) RecordSkipped(line string, err error) {
	m.skipped = append(m.skipped, line)
	m.skippedErrs = append(m.skippedErrs, err)
}

func (m *mockObs) count(msg string) int {
	n := 0
	for _, list := range [][]string{m.infos, m.errors, m.critical} {
		for _, s := range list {
			if s == msg {
				n++
			}
		}
	}
	return n
}
