package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/sensorlog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("sensorlog %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to configuration file")
	port := fs.String("port", "", "Serial port, overrides source.serial.port")
	out := fs.String("out", "", "CSV path, overrides sink.csv.path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefault(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port != "" {
		cfg.Source.Serial.Port = *port
	}
	if *out != "" {
		cfg.Sink.CSV.Path = *out
	}

	flow, err := sensorlog.ConfFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

// loadOrDefault falls back to defaults only when no config file exists at the
// default location.
func loadOrDefault(path string) (*sensorlog.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "./config.yaml" {
		return sensorlog.DefaultConfig(), nil
	}
	return sensorlog.LoadConfig(path)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorlog.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s ok: source=%s schema=%s sink=%s\n",
		*cfgPath, cfg.Source.Kind, cfg.Schema.Variant, cfg.Sink.Kind)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statNames = []string{
	"sensorlog_lines_read_total",
	"sensorlog_rows_appended_total",
	"sensorlog_lines_skipped_total",
	"sensorlog_sink_size_bytes",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets, err := scanMetrics(resp.Body, statNames)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] lines=%.0f rows=%.0f skipped=%.0f csv_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["sensorlog_lines_read_total"],
		targets["sensorlog_rows_appended_total"],
		targets["sensorlog_lines_skipped_total"],
		targets["sensorlog_sink_size_bytes"],
	)
	return nil
}

// scanMetrics picks unlabelled samples for names out of a text exposition.
func scanMetrics(r io.Reader, names []string) (map[string]float64, error) {
	targets := make(map[string]float64, len(names))
	for _, n := range names {
		targets[n] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	return targets, scanner.Err()
}

func printUsage() {
	fmt.Printf(`sensorlog CLI

Usage:
  sensorlog <command> [flags]

Commands:
  run        Log sensor readings from the configured source until interrupted
  validate   Load and validate a config file without opening the source
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  sensorlog run -config ./config.yaml
  sensorlog run -port /dev/ttyUSB0 -out sensor_data.csv
  sensorlog validate -config ./config.yaml
  sensorlog stats -url http://localhost:9100/metrics -interval 1s
`)
}
