package domain

import "time"

// HostTimeLayout is the host_timestamp format written to every row.
const HostTimeLayout = "2006-01-02 15:04:05"

// Record is a normalized Reading ready to be persisted exactly once.
// Numeric fields are already rounded; fields outside the active schema are
// zero/nil.
type Record struct {
	Kind            Kind
	HostTime        time.Time
	ID              string
	Temperature     float64
	Humidity        float64
	DeviceTimestamp *string
}

// HostTimestamp renders HostTime in the local zone at second precision.
func (r Record) HostTimestamp() string {
	return r.HostTime.Local().Format(HostTimeLayout)
}
