package domain

// Reading is the structured result of a successful line extraction. It is
// either a ScalarReading or an ObjectReading; no other implementations exist.
type Reading interface {
	isReading()
}

// ScalarReading is produced by the pattern strategy.
type ScalarReading struct {
	TemperatureC float64
}

// ObjectReading is produced by the embedded-object strategy. DeviceTimestamp
// is nil when the device did not send one or the extractor dropped it.
type ObjectReading struct {
	ID              string
	Temperature     float64
	Humidity        float64
	DeviceTimestamp *string
}

func (ScalarReading) isReading() {}
func (ObjectReading) isReading() {}
