package source

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/ghalamif/sensorlog/internal/ports"
)

// maxReadSlice bounds a single blocking read so cancellation is observed
// promptly even with long read timeouts.
const maxReadSlice = 200 * time.Millisecond

// serialPort is the subset of serial.Port the source uses.
type serialPort interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type SerialSource struct {
	cfg    SerialConfig
	decode ports.DecodePolicy
	open   func(name string, mode *serial.Mode) (serialPort, error)

	port  serialPort
	asm   *lineAssembler
	chunk []byte
}

func NewSerialSource(cfg SerialConfig, decode ports.DecodePolicy, maxLine int) *SerialSource {
	return &SerialSource{
		cfg:    cfg,
		decode: decode,
		open: func(name string, mode *serial.Mode) (serialPort, error) {
			return serial.Open(name, mode)
		},
		asm:   newLineAssembler(maxLine),
		chunk: make([]byte, 256),
	}
}

func (s *SerialSource) Name() string { return "serial:" + s.cfg.Port }

func (s *SerialSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	port, err := s.open(s.cfg.Port, &serial.Mode{BaudRate: s.cfg.Baud})
	if err != nil {
		return fmt.Errorf("%w: open serial port %s @ %d baud: %v", ports.ErrSourceUnavailable, s.cfg.Port, s.cfg.Baud, err)
	}
	s.port = port
	return nil
}

func (s *SerialSource) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if s.port == nil {
		return "", fmt.Errorf("%w: serial port not open", ports.ErrSourceFailed)
	}
	deadline := time.Now().Add(timeout)
	for {
		if line, ok := s.asm.next(); ok {
			return Decode(line, s.decode), nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ports.ErrNoLine
		}
		if remaining > maxReadSlice {
			remaining = maxReadSlice
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("%w: set read timeout: %v", ports.ErrSourceFailed, err)
		}
		n, err := s.port.Read(s.chunk)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ports.ErrSourceFailed, s.cfg.Port, err)
		}
		s.asm.push(s.chunk[:n])
	}
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

var _ ports.LineSource = (*SerialSource)(nil)
