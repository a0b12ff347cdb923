package ports

import "github.com/ghalamif/sensorlog/internal/domain"

// Sink is a single-writer, append-only tabular store with a fixed header.
type Sink interface {
	Open() error
	// EnsureHeader writes the schema header if the store is empty and
	// verifies it otherwise. Calling it again is a no-op.
	EnsureHeader() error
	// Append persists exactly one row and returns only once it is durable.
	Append(rec domain.Record) error
	Close() error
	Name() string
}
