package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScanMetrics(t *testing.T) {
	exposition := `# HELP sensorlog_rows_appended_total Rows durably appended to the sink.
# TYPE sensorlog_rows_appended_total counter
sensorlog_rows_appended_total 42
sensorlog_lines_read_total 50
sensorlog_sink_size_bytes 1.048576e+06
go_goroutines 7
`
	got, err := scanMetrics(strings.NewReader(exposition), statNames)
	if err != nil {
		t.Fatalf("scanMetrics: %v", err)
	}
	if got["sensorlog_rows_appended_total"] != 42 || got["sensorlog_lines_read_total"] != 50 {
		t.Fatalf("unexpected counters %v", got)
	}
	if got["sensorlog_sink_size_bytes"] != 1048576 {
		t.Fatalf("expected exponent notation to parse, got %v", got["sensorlog_sink_size_bytes"])
	}
	if got["sensorlog_lines_skipped_total"] != 0 {
		t.Fatalf("expected missing metric to read as 0")
	}
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("schema:\n  variant: object\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := validateCommand([]string{"-config", path}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := os.WriteFile(path, []byte("sink:\n  kind: parquet\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := validateCommand([]string{"-config", path}); err == nil {
		t.Fatalf("expected validation error")
	}
}
