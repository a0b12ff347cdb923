package ports

import "github.com/ghalamif/sensorlog/internal/domain"

// Extractor turns one raw line into at most one Reading. A non-nil error
// means no Reading; it wraps ErrEmptyLine, ErrNoMatch or ErrMalformed.
type Extractor interface {
	Extract(line string) (domain.Reading, error)
}

// Normalizer applies rounding, host timestamp and field policy. It never fails.
type Normalizer interface {
	Normalize(r domain.Reading) domain.Record
}
