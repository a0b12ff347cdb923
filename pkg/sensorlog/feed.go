package sensorlog

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/sensorlog/internal/adapters/source"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// ErrFeedClosed indicates Publish was called after CloseInput.
var ErrFeedClosed = errors.New("sensorlog: line feed closed")

// LineFeed is a LineSource fed by the embedding program, for lines that
// arrive over a transport the runtime does not own (a socket, another
// process, a test). Publish blocks while the buffer is full.
type LineFeed struct {
	lines  chan string
	done   chan struct{}
	once   sync.Once
	decode ports.DecodePolicy
}

// NewLineFeed returns a feed buffering up to buffer lines. Invalid UTF-8 in
// published lines is handled with the drop policy.
func NewLineFeed(buffer int) *LineFeed {
	if buffer < 0 {
		buffer = 0
	}
	return &LineFeed{
		lines:  make(chan string, buffer),
		done:   make(chan struct{}),
		decode: ports.DecodeDrop,
	}
}

// Publish queues text for the pipeline. Text holding several newline
// separated lines is queued line by line.
func (f *LineFeed) Publish(ctx context.Context, text string) error {
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		if err := f.publishLine(ctx, source.Decode([]byte(line), f.decode)); err != nil {
			return err
		}
	}
	return nil
}

func (f *LineFeed) publishLine(ctx context.Context, line string) error {
	select {
	case <-f.done:
		return ErrFeedClosed
	default:
	}

	select {
	case <-f.done:
		return ErrFeedClosed
	case <-ctx.Done():
		return ctx.Err()
	case f.lines <- line:
		return nil
	}
}

// CloseInput ends the stream. Lines already queued are still delivered,
// then ReadLine reports io.EOF.
func (f *LineFeed) CloseInput() {
	f.once.Do(func() { close(f.done) })
}

func (f *LineFeed) Open(context.Context) error { return nil }

func (f *LineFeed) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case line := <-f.lines:
		return line, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-f.lines:
		return line, nil
	case <-f.done:
		select {
		case line := <-f.lines:
			return line, nil
		default:
			return "", io.EOF
		}
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ports.ErrNoLine
	}
}

// Close ends the stream like CloseInput.
func (f *LineFeed) Close() error {
	f.CloseInput()
	return nil
}

func (f *LineFeed) Name() string { return "feed" }

var _ ports.LineSource = (*LineFeed)(nil)
