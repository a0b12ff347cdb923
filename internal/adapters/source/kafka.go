package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/sensorlog/internal/ports"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes device lines from a Kafka topic within a consumer
// group. Offsets are committed by the reader as messages are read.
type KafkaSource struct {
	cfg    KafkaConfig
	decode ports.DecodePolicy
	dial   func(ctx context.Context, network, address string) (*kafka.Conn, error)

	reader messageReader
	lines  messageLines
}

func NewKafkaSource(cfg KafkaConfig, decode ports.DecodePolicy) *KafkaSource {
	return &KafkaSource{
		cfg:    cfg,
		decode: decode,
		dial:   kafka.DialContext,
	}
}

func (s *KafkaSource) Name() string { return "kafka:" + s.cfg.Topic }

func (s *KafkaSource) Open(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The reader connects lazily; dial once so an unreachable broker fails
	// at startup instead of on the first read.
	conn, err := s.dial(dctx, "tcp", s.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("%w: kafka dial %s: %v", ports.ErrSourceUnavailable, s.cfg.Brokers[0], err)
	}
	_ = conn.Close()

	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		Topic:    s.cfg.Topic,
		GroupID:  s.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	})
	return nil
}

func (s *KafkaSource) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if line, ok := s.lines.pop(); ok {
		return Decode(line, s.decode), nil
	}
	if s.reader == nil {
		return "", fmt.Errorf("%w: kafka reader not open", ports.ErrSourceFailed)
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := s.reader.ReadMessage(rctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ports.ErrNoLine
		}
		return "", fmt.Errorf("%w: kafka read %s: %v", ports.ErrSourceFailed, s.cfg.Topic, err)
	}
	s.lines.push(msg.Value)
	line, _ := s.lines.pop()
	return Decode(line, s.decode), nil
}

func (s *KafkaSource) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

var _ ports.LineSource = (*KafkaSource)(nil)
