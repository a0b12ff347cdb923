package sensorlog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/sensorlog/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("sensorlog: channel sink closed")

// RecordHandler receives each appended record. Returning an error stops the
// run as a sink failure.
type RecordHandler func(Record) error

// NewCallbackSink adapts a RecordHandler into a Sink so callers can plug
// arbitrary functions without defining structs. It has no header and is only
// as durable as fn.
func NewCallbackSink(name string, fn RecordHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes records via a channel; it returns the sink, the
// read-only channel, and a close function the caller may invoke during
// shutdown. The channel is also closed when the run releases the sink.
func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Record, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   RecordHandler
}

func (s *callbackSink) Open() error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return nil
}

func (s *callbackSink) EnsureHeader() error { return nil }

func (s *callbackSink) Append(rec domain.Record) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(rec)
}

func (s *callbackSink) Close() error { return nil }

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan Record
	closed chan struct{}
	once   sync.Once
	mu     sync.Mutex
}

func (s *channelSink) Open() error { return nil }

func (s *channelSink) EnsureHeader() error { return nil }

func (s *channelSink) Append(rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- rec:
		return nil
	}
}

func (s *channelSink) Close() error {
	s.close()
	return nil
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
