package ports

import (
	"context"
	"time"
)

// LineSource yields decoded text lines from the device transport. A source is
// opened once and never restarted.
type LineSource interface {
	Open(ctx context.Context) error
	// ReadLine blocks until a line arrives, the timeout elapses (ErrNoLine),
	// the stream ends (io.EOF) or ctx is cancelled. Undecodable input comes
	// back as an empty line, never as an error.
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
	Name() string
}
