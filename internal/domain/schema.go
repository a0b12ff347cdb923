package domain

import (
	"fmt"
	"strconv"
)

// Kind names a schema variant.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindObject Kind = "object"
)

// Field identifies which Record field a column carries.
type Field int

const (
	FieldHostTime Field = iota
	FieldID
	FieldTemperature
	FieldHumidity
	FieldDeviceTimestamp
)

// Column is one header entry of the persistent log.
type Column struct {
	Name  string
	Field Field
}

// Schema is the fixed column set and order of a persistent log.
type Schema struct {
	Kind    Kind
	Columns []Column
	// FixedDecimals renders numbers with exactly two decimals ("28.00")
	// instead of the shortest form ("55.1").
	FixedDecimals bool
}

// ScalarSchema is the Timestamp, Temperature_C layout.
func ScalarSchema() Schema {
	return Schema{
		Kind: KindScalar,
		Columns: []Column{
			{Name: "Timestamp", Field: FieldHostTime},
			{Name: "Temperature_C", Field: FieldTemperature},
		},
		FixedDecimals: true,
	}
}

// ObjectSchema is the id, temperature, humidity[, timestamp], datetime layout.
// The device timestamp column only exists when keepDeviceTimestamp is set.
func ObjectSchema(keepDeviceTimestamp bool) Schema {
	cols := []Column{
		{Name: "id", Field: FieldID},
		{Name: "temperature", Field: FieldTemperature},
		{Name: "humidity", Field: FieldHumidity},
	}
	if keepDeviceTimestamp {
		cols = append(cols, Column{Name: "timestamp", Field: FieldDeviceTimestamp})
	}
	cols = append(cols, Column{Name: "datetime", Field: FieldHostTime})
	return Schema{Kind: KindObject, Columns: cols}
}

// Header returns the column names in order.
func (s Schema) Header() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the schema persists field f.
func (s Schema) Has(f Field) bool {
	for _, c := range s.Columns {
		if c.Field == f {
			return true
		}
	}
	return false
}

// Row renders r in the schema's column order.
func (s Schema) Row(r Record) []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		switch c.Field {
		case FieldHostTime:
			out[i] = r.HostTimestamp()
		case FieldID:
			out[i] = r.ID
		case FieldTemperature:
			out[i] = s.formatNumber(r.Temperature)
		case FieldHumidity:
			out[i] = s.formatNumber(r.Humidity)
		case FieldDeviceTimestamp:
			if r.DeviceTimestamp != nil {
				out[i] = *r.DeviceTimestamp
			}
		default:
			panic(fmt.Sprintf("domain: unknown field %d", c.Field))
		}
	}
	return out
}

func (s Schema) formatNumber(v float64) string {
	if s.FixedDecimals {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
