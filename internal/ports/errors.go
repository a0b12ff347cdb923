package ports

import "errors"

var (
	// ErrNoLine is returned by LineSource.ReadLine when the read timed out
	// with no complete line. It is not a stream-ending condition.
	ErrNoLine = errors.New("sensorlog: no line available")

	// ErrEmptyLine marks a line with no content; it is skipped silently.
	ErrEmptyLine = errors.New("sensorlog: empty line")
	// ErrNoMatch marks a line that does not carry a reading.
	ErrNoMatch = errors.New("sensorlog: no reading in line")
	// ErrMalformed marks a line that looked like a reading but failed validation.
	ErrMalformed = errors.New("sensorlog: malformed reading")

	ErrSourceUnavailable = errors.New("sensorlog: line source unavailable")
	ErrSourceFailed      = errors.New("sensorlog: line source failed")
	ErrSinkFailed        = errors.New("sensorlog: sink failed")
	// ErrSchemaMismatch means an existing store was created with different columns.
	ErrSchemaMismatch = errors.New("sensorlog: store schema mismatch")
)
