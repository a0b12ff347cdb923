// Package normalize applies rounding, host timestamps and the schema's field
// policy to extracted readings.
package normalize

import (
	"math"
	"time"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

type Normalizer struct {
	schema   domain.Schema
	rounding ports.RoundingMode
	now      func() time.Time
}

type Option func(*Normalizer)

// WithClock overrides the wall clock used for host timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func New(schema domain.Schema, rounding ports.RoundingMode, opts ...Option) *Normalizer {
	if rounding == "" {
		rounding = ports.RoundHalfAwayFromZero
	}
	n := &Normalizer{schema: schema, rounding: rounding, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Normalize(r domain.Reading) domain.Record {
	rec := domain.Record{
		Kind:     n.schema.Kind,
		HostTime: n.now().Truncate(time.Second),
	}

	switch v := r.(type) {
	case domain.ScalarReading:
		rec.Temperature = n.round(v.TemperatureC)
	case domain.ObjectReading:
		rec.ID = v.ID
		rec.Temperature = n.round(v.Temperature)
		rec.Humidity = n.round(v.Humidity)
		if v.DeviceTimestamp != nil {
			ts := *v.DeviceTimestamp
			rec.DeviceTimestamp = &ts
		}
	}

	n.strip(&rec)
	return rec
}

// strip zeroes every field the active schema does not persist.
func (n *Normalizer) strip(rec *domain.Record) {
	if !n.schema.Has(domain.FieldID) {
		rec.ID = ""
	}
	if !n.schema.Has(domain.FieldHumidity) {
		rec.Humidity = 0
	}
	if !n.schema.Has(domain.FieldDeviceTimestamp) {
		rec.DeviceTimestamp = nil
	}
}

func (n *Normalizer) round(v float64) float64 {
	return Round2(v, n.rounding)
}

// Round2 rounds v to two decimal places. The value is scaled through its
// shortest decimal form first so 2.675 rounds as written, not as the nearest
// binary double (2.67499999...).
func Round2(v float64, mode ports.RoundingMode) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scaled := scale100(v)
	var r float64
	switch mode {
	case ports.RoundHalfEven:
		r = math.RoundToEven(scaled)
	default:
		r = math.Round(scaled)
	}
	if r == 0 {
		// Drops the sign so -0.004 renders as "0.00".
		return 0
	}
	return r / 100
}

var _ ports.Normalizer = (*Normalizer)(nil)
