// Package source adapts device transports to the ports.LineSource contract.
package source

import (
	"fmt"
	"os"

	"github.com/ghalamif/sensorlog/internal/ports"
)

// New builds the line source selected by cfg.Kind. logf receives transport
// diagnostics that happen outside ReadLine, such as a lost broker connection.
func New(cfg Config, logf func(string, ...any)) (ports.LineSource, error) {
	switch cfg.Kind {
	case KindSerial:
		return NewSerialSource(cfg.Serial, cfg.InvalidUTF8, cfg.MaxLineBytes), nil
	case KindMQTT:
		return NewMQTTSource(cfg.MQTT, cfg.InvalidUTF8, logf), nil
	case KindKafka:
		return NewKafkaSource(cfg.Kafka, cfg.InvalidUTF8), nil
	case KindFile:
		return NewFileSource(cfg.File.Path, cfg.InvalidUTF8, cfg.MaxLineBytes), nil
	case KindStdin:
		return NewReaderSource("stdin", os.Stdin, cfg.InvalidUTF8, cfg.MaxLineBytes), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
