package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ghalamif/sensorlog/internal/ports"
)

// ReaderSource reads lines from any io.Reader (stdin, a replay file, a pipe).
// A pump goroutine performs the blocking reads so ReadLine can honour its
// timeout and ctx.
type ReaderSource struct {
	name   string
	decode ports.DecodePolicy
	openFn func() (io.Reader, error)

	r      io.Reader
	chunks chan []byte
	errc   chan error
	done   chan struct{}
	once   sync.Once
	asm    *lineAssembler
	eof    bool
}

// NewReaderSource wraps an already open reader.
func NewReaderSource(name string, r io.Reader, decode ports.DecodePolicy, maxLine int) *ReaderSource {
	return &ReaderSource{
		name:   name,
		decode: decode,
		openFn: func() (io.Reader, error) { return r, nil },
		asm:    newLineAssembler(maxLine),
	}
}

// NewFileSource replays a captured device log; end of file ends the run.
func NewFileSource(path string, decode ports.DecodePolicy, maxLine int) *ReaderSource {
	return &ReaderSource{
		name:   "file:" + path,
		decode: decode,
		openFn: func() (io.Reader, error) { return os.Open(path) },
		asm:    newLineAssembler(maxLine),
	}
}

func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := s.openFn()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ports.ErrSourceUnavailable, s.name, err)
	}
	s.r = r
	s.chunks = make(chan []byte)
	s.errc = make(chan error, 1)
	s.done = make(chan struct{})
	go s.pump()
	return nil
}

func (s *ReaderSource) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.errc <- err
			close(s.chunks)
			return
		}
	}
}

func (s *ReaderSource) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if s.chunks == nil {
		return "", fmt.Errorf("%w: %s not open", ports.ErrSourceFailed, s.name)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if line, ok := s.asm.next(); ok {
			return Decode(line, s.decode), nil
		}
		if s.eof {
			if line, ok := s.asm.rest(); ok {
				return Decode(line, s.decode), nil
			}
			return "", io.EOF
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", ports.ErrNoLine
		case chunk, ok := <-s.chunks:
			if ok {
				s.asm.push(chunk)
				continue
			}
			s.eof = true
			if err := <-s.errc; !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: %s: %v", ports.ErrSourceFailed, s.name, err)
			}
		}
	}
}

// Close releases the underlying reader when it is closable. A pump blocked on
// a non-closable reader such as stdin exits with the process.
func (s *ReaderSource) Close() error {
	if s.done != nil {
		s.once.Do(func() { close(s.done) })
	}
	if c, ok := s.r.(io.Closer); ok && s.r != os.Stdin {
		return c.Close()
	}
	return nil
}

var _ ports.LineSource = (*ReaderSource)(nil)
