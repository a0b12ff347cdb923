// Package extract implements the line-to-Reading strategies.
package extract

import (
	"fmt"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// New returns the strategy for the schema variant.
func New(kind domain.Kind, policy ports.DeviceTimestampPolicy) (ports.Extractor, error) {
	switch kind {
	case domain.KindScalar:
		return NewPatternExtractor(), nil
	case domain.KindObject:
		return NewObjectExtractor(policy), nil
	default:
		return nil, fmt.Errorf("unknown schema variant %q", kind)
	}
}
